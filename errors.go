package sqlreplay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anacrolix/sqlreplay/dataset"
	"github.com/anacrolix/sqlreplay/fingerprint"
	"github.com/anacrolix/sqlreplay/refs"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

var (
	ErrInvalidHandle                 = refs.ErrInvalidHandle
	ErrResourceNotFound              = refs.ErrResourceNotFound
	ErrOwnershipViolation            = errors.New("ownership violation")
	ErrUnsupportedParameterDirection = fingerprint.ErrUnsupportedParameterDirection
	ErrReplayDataUnavailable         = errors.New("replay data unavailable")
	// ErrChannelFaulted is never returned by the server. The client returns it
	// for every call on a channel that had a transport failure.
	ErrChannelFaulted = errors.New("channel faulted")

	ErrNoCurrentRow      = errors.New("no current row")
	ErrColumnOutOfRange  = errors.New("column out of range")
	ErrParameterNotFound = errors.New("parameter not found")
	ErrNullValue         = sqltypes.ErrNullValue
	ErrReaderClosed      = dataset.ErrClosed
	ErrTransactionDone   = errors.New("transaction already committed or rolled back")
	ErrConnectionNotOpen = errors.New("connection is not open")
	ErrConnectionOpen    = errors.New("connection is open")
	ErrNotSupported      = errors.New("not supported")
)

// Kinds are matched in order; the first that an error wraps names it on the
// wire.
var errorKinds = []struct {
	name string
	err  error
}{
	{"InvalidHandle", ErrInvalidHandle},
	{"ResourceNotFound", ErrResourceNotFound},
	{"OwnershipViolation", ErrOwnershipViolation},
	{"UnsupportedParameterDirection", ErrUnsupportedParameterDirection},
	{"ReplayDataUnavailable", ErrReplayDataUnavailable},
	{"NoCurrentRow", ErrNoCurrentRow},
	{"ColumnOutOfRange", ErrColumnOutOfRange},
	{"ParameterNotFound", ErrParameterNotFound},
	{"NullValue", ErrNullValue},
	{"ReaderClosed", ErrReaderClosed},
	{"TransactionDone", ErrTransactionDone},
	{"ConnectionNotOpen", ErrConnectionNotOpen},
	{"ConnectionOpen", ErrConnectionOpen},
	{"NotSupported", ErrNotSupported},
}

// unclassifiedKind covers driver failures and anything else outside the
// taxonomy.
const unclassifiedKind = "Error"

const faultPrefix = "sqlreplay["

func kindName(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return unclassifiedKind
}

// Fault is a failed call as seen by the client. It unwraps to the taxonomy
// sentinel the server error wrapped, if any.
type Fault struct {
	Kind    error
	Message string
}

func (me *Fault) Error() string {
	return me.Message
}

func (me *Fault) Unwrap() error {
	return me.Kind
}

// encodeError prefixes the kind, which is all of the error that survives
// net/rpc. In process the result still wraps err.
func encodeError(err error) error {
	return fmt.Errorf("%s%s]: %w", faultPrefix, kindName(err), err)
}

func decodeFault(s string) *Fault {
	rest, ok := strings.CutPrefix(s, faultPrefix)
	if !ok {
		return &Fault{Message: s}
	}
	name, msg, ok := strings.Cut(rest, "]: ")
	if !ok {
		return &Fault{Message: s}
	}
	ret := &Fault{Message: msg}
	for _, k := range errorKinds {
		if k.name == name {
			ret.Kind = k.err
			break
		}
	}
	return ret
}
