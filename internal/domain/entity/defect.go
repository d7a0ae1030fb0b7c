package entity

import "fmt"

// Status вердикт по одной найденной ячейке блистера
type Status int

const (
	StatusUnknown      Status = iota // не классифицирована
	StatusApproved                   // таблетка на месте и достаточно круглая
	StatusEmptyCavity                // слишком маленькая область, пустая ячейка
	StatusDeformedPill               // таблетка есть, но форма неправильная
)

// DefectTypeNone значение defect_type в журнале для годных ячеек
const DefectTypeNone = "N/A"

var statusNames = map[Status]string{
	StatusUnknown:      "Unknown",
	StatusApproved:     "Approved",
	StatusEmptyCavity:  "EmptyCavity",
	StatusDeformedPill: "DeformedPill",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsDefect сообщает, нужно ли отбраковать ячейку
func (s Status) IsDefect() bool {
	return s != StatusApproved
}

// DefectType возвращает значение колонки defect_type журнала
func (s Status) DefectType() string {
	if s == StatusApproved {
		return DefectTypeNone
	}
	return s.String()
}

// ParseStatus переводит имя статуса обратно в Status
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
