// Package transport carries identification protocol messages between a prover and a verifier.
//
// Messages are CBOR maps with small integer keys, encoded by the module's cbor package.
// A session on a Conn runs:
//
//	prover                        verifier
//	Hello{Username}        ->
//	                       <-     Accept{Round: R}  or  Verdict
//	Commitment{Round, x}   ->                                  \
//	                       <-     Challenge{Round, e}           |
//	Response{Round, y}     ->                                   } R times
//	                       <-     Next{Round + 1}  or  Verdict  /
//
// The prover commits only when asked: by Accept for the first round and by Next for the others.
// After the last round, or after a failed one, the verifier sends the Verdict instead of Next,
// so no message of a finished session is left in flight. ModulusRequest and Register are single
// request/reply exchanges outside of a session.
//
// The package provides no authentication or confidentiality; run it over a secured channel.
package transport

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/fiatshamir/big"
)

var Logger = logrus.StandardLogger()

type Kind uint8

const (
	KindModulusRequest Kind = iota + 1
	KindModulus
	KindRegister
	KindHello
	KindAccept
	KindCommitment
	KindChallenge
	KindResponse
	KindVerdict
	KindNext
)

var kindNames = map[Kind]string{
	KindModulusRequest: "ModulusRequest",
	KindModulus:        "Modulus",
	KindRegister:       "Register",
	KindHello:          "Hello",
	KindAccept:         "Accept",
	KindCommitment:     "Commitment",
	KindChallenge:      "Challenge",
	KindResponse:       "Response",
	KindVerdict:        "Verdict",
	KindNext:           "Next",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Message is the single envelope for every protocol message. Which fields are set depends on Kind:
//
//	Modulus     Value = N, Fingerprint
//	Register    Username, Value = v, HashCode, Fingerprint
//	Hello       Username
//	Accept      Round = number of rounds
//	Next        Round = the round to commit for
//	Commitment  Round, Value = x
//	Challenge   Round, Bit = e
//	Response    Round, Value = y
//	Verdict     Accepted, Error
type Message struct {
	Kind        Kind     `cbor:"1,keyasint"`
	Round       int      `cbor:"2,keyasint,omitempty"`
	Value       *big.Int `cbor:"3,keyasint,omitempty"`
	Bit         uint8    `cbor:"4,keyasint,omitempty"`
	Username    string   `cbor:"5,keyasint,omitempty"`
	HashCode    uint64   `cbor:"6,keyasint,omitempty"`
	Error       string   `cbor:"7,keyasint,omitempty"`
	Accepted    bool     `cbor:"8,keyasint,omitempty"`
	Fingerprint string   `cbor:"9,keyasint,omitempty"`
}

func (m *Message) clone() *Message {
	c := *m
	if m.Value != nil {
		c.Value = new(big.Int).Set(m.Value)
	}
	return &c
}

func (m *Message) fields() logrus.Fields {
	f := logrus.Fields{"kind": m.Kind}
	if m.Round != 0 {
		f["round"] = m.Round
	}
	if m.Username != "" {
		f["username"] = m.Username
	}
	return f
}
