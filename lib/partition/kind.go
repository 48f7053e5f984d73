package partition

import "fmt"

// Kind tags the mutation a log item or a backup describes.
type Kind uint8

const (
	KindRemove Kind = iota + 1
	KindPut
	KindUpdate
)

func (k Kind) String() string {
	switch k {
	case KindRemove:
		return "REMOVE"
	case KindPut:
		return "PUT"
	case KindUpdate:
		return "UPDATE"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "REMOVE":
		return KindRemove, nil
	case "PUT":
		return KindPut, nil
	case "UPDATE":
		return KindUpdate, nil
	default:
		return 0, fmt.Errorf("unknown mutation kind %q", s)
	}
}
