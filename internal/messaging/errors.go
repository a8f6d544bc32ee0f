package messaging

import (
	"errors"
	"fmt"
)

// ErrorKind classifies transport failures.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	// KindRecipientUnreachable covers blocked bots, deleted accounts and unknown chats.
	KindRecipientUnreachable
	// KindNotModified is returned when an edit would not change the message.
	KindNotModified
)

func (k ErrorKind) String() string {
	switch k {
	case KindRecipientUnreachable:
		return "recipient_unreachable"
	case KindNotModified:
		return "not_modified"
	default:
		return "other"
	}
}

var (
	// ErrRecipientUnreachable matches any *Error of kind KindRecipientUnreachable.
	ErrRecipientUnreachable = errors.New("messaging: recipient unreachable")
	// ErrNotModified matches any *Error of kind KindNotModified.
	ErrNotModified = errors.New("messaging: message not modified")
)

// Error wraps a transport failure with its classification.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("messaging: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("messaging: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel that corresponds to Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRecipientUnreachable:
		return e.Kind == KindRecipientUnreachable
	case ErrNotModified:
		return e.Kind == KindNotModified
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, KindOther otherwise.
func KindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindOther
}
