package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/infrastructure/storage"
)

func newService(insp *fakeInspector, journal *fakeJournal, pub *fakePublisher) *InspectionService {
	d := InspectionDeps{
		Users:     NewUserService(storage.NewMemoryUserRepository()),
		Inspector: insp,
		Describer: fakeDescriber{},
	}
	if journal != nil {
		d.Journal = journal
	}
	if pub != nil {
		d.Publisher = pub
	}
	return NewInspectionService(d)
}

func TestInspectionService_Inspect(t *testing.T) {
	insp := &fakeInspector{report: sampleReport()}
	journal := &fakeJournal{}
	pub := &fakePublisher{}
	svc := newService(insp, journal, pub)

	out, err := svc.Inspect(context.Background(), []byte("frame"), OriginUpload)
	require.NoError(t, err)
	require.True(t, out.Persisted)
	require.Equal(t, "saved-batch", out.Batch.BatchID)
	require.Len(t, out.Batch.Results, 2)
	require.Equal(t, []string{OriginUpload}, pub.origins)
	require.Equal(t, []byte("frame"), insp.last)
}

func TestInspectionService_PersistenceFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errBoom}
	svc := newService(&fakeInspector{report: sampleReport()}, &fakeJournal{err: errBoom}, pub)

	out, err := svc.Inspect(context.Background(), []byte("frame"), OriginCapture)
	require.NoError(t, err)
	require.False(t, out.Persisted)
	require.NotEmpty(t, out.Batch.BatchID)
	require.Len(t, out.Report.Results, 2)
	require.Len(t, pub.origins, 1)
}

func TestInspectionService_InspectorError(t *testing.T) {
	journal := &fakeJournal{}
	svc := newService(&fakeInspector{err: errBoom}, journal, nil)

	_, err := svc.Inspect(context.Background(), []byte("frame"), OriginUpload)
	require.ErrorIs(t, err, errBoom)
	require.Empty(t, journal.batches)
}

func TestInspectionService_NoInspector(t *testing.T) {
	svc := NewInspectionService(InspectionDeps{})
	_, err := svc.Inspect(context.Background(), nil, OriginUpload)
	require.ErrorIs(t, err, ErrInspectorNotConfigured)
}

func TestInspectionService_ProcessPhoto(t *testing.T) {
	users := NewUserService(storage.NewMemoryUserRepository())
	svc := NewInspectionService(InspectionDeps{
		Users:     users,
		Inspector: &fakeInspector{report: sampleReport()},
		Describer: fakeDescriber{},
		Journal:   &fakeJournal{},
	})
	ctx := context.Background()

	out, desc, err := svc.ProcessPhoto(ctx, 1, 10, []byte("photo"))
	require.NoError(t, err)
	require.Equal(t, "saved-batch", desc.Text)
	require.Equal(t, 1, out.Report.DefectCount())

	user, err := users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
	require.Equal(t, "saved-batch", user.LastBatchID)
	require.Equal(t, 1, user.Rejected)
}

func TestInspectionService_ProcessPhotoFailureResetsState(t *testing.T) {
	users := NewUserService(storage.NewMemoryUserRepository())
	svc := NewInspectionService(InspectionDeps{Users: users, Inspector: &fakeInspector{err: errBoom}})
	ctx := context.Background()

	_, _, err := svc.ProcessPhoto(ctx, 1, 10, []byte("photo"))
	require.ErrorIs(t, err, errBoom)

	user, err := users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
	require.Zero(t, user.Inspected)
}

func TestInspectionService_Records(t *testing.T) {
	journal := &fakeJournal{}
	svc := newService(&fakeInspector{report: sampleReport()}, journal, nil)
	ctx := context.Background()

	_, err := svc.Inspect(ctx, []byte("frame"), OriginUpload)
	require.NoError(t, err)

	records, err := svc.Records(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	empty, err := NewInspectionService(InspectionDeps{}).Records(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, empty)
}
