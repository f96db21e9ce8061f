package stream

import (
	"fmt"

	"github.com/google/uuid"
)

// PunctuationKind identifies the type of a punctuation.
type PunctuationKind uint8

const (
	None           PunctuationKind = iota //< none, shouldn't be used
	EndOfStream                           //< the end of a stream was identified (e.g. EOF)
	EndOfSubStream                        //< the end of a substream was identified
	WindowExpired                         //< a tumbling window expired
	SlideExpired                          //< a sliding interval expired
	TxBegin                               //< begin of a transaction
	TxCommit                              //< commit of a transaction
	TxAbort                               //< abort of a transaction
)

func (k PunctuationKind) String() string {
	switch k {
	case EndOfStream:
		return "EndOfStream"
	case EndOfSubStream:
		return "EndOfSubStream"
	case WindowExpired:
		return "WindowExpired"
	case SlideExpired:
		return "SlideExpired"
	case TxBegin:
		return "TxBegin"
	case TxCommit:
		return "TxCommit"
	case TxAbort:
		return "TxAbort"
	default:
		return "None"
	}
}

// Punctuation is a control record sent to subscribers to signal special
// situations like end-of-stream or window expirations. Punctuations travel on
// a separate channel from data elements and never carry payload tuples.
type Punctuation struct {
	Kind      PunctuationKind
	Timestamp Timestamp
	Payload   interface{} // opaque user data, e.g. a transaction id
}

// NewPunctuation creates a punctuation of the given kind stamped with the
// current time.
func NewPunctuation(kind PunctuationKind) *Punctuation {
	return &Punctuation{Kind: kind, Timestamp: CurrentTimestamp()}
}

// NewPunctuationAt creates a punctuation with an explicit timestamp.
func NewPunctuationAt(kind PunctuationKind, ts Timestamp) *Punctuation {
	return &Punctuation{Kind: kind, Timestamp: ts}
}

// NewTxPunctuation creates a transaction punctuation carrying the
// transaction id as payload.
func NewTxPunctuation(kind PunctuationKind, txID uuid.UUID) *Punctuation {
	return &Punctuation{Kind: kind, Timestamp: CurrentTimestamp(), Payload: txID}
}

// TxID returns the transaction id payload, if present.
func (p *Punctuation) TxID() (uuid.UUID, bool) {
	id, ok := p.Payload.(uuid.UUID)
	return id, ok
}

func (p *Punctuation) String() string {
	return fmt.Sprintf("Punctuation{%s @%d}", p.Kind, p.Timestamp)
}
