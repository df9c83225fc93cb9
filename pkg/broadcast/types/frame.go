package types

import "encoding/json"

// Wire frame kind tags, preserved from the reference implementation for
// interoperability: 4 is the RC/Dolev frame, 5 is the BRB/Bracha frame, 6 is
// the RCO frame.
const (
	MsgDolev  = 4
	MsgBracha = 5
	MsgRCO    = 6
)

// DolevFrame is the wire format of the RC layer: (origin, content, path).
type DolevFrame struct {
	MsgID   int    `json:"msg_id"`
	Origin  NodeID `json:"sender_id"`
	Content string `json:"content"`
	Path    Path   `json:"path"`
}

func NewDolevFrame(origin NodeID, content string, path Path) DolevFrame {
	return DolevFrame{MsgID: MsgDolev, Origin: origin, Content: content, Path: path}
}

func (f DolevFrame) Key() Key {
	return NewKey(f.Origin, f.Content)
}

// BrachaKind distinguishes the three phases of Bracha's protocol.
type BrachaKind string

const (
	BrachaSend  BrachaKind = "SEND"
	BrachaEcho  BrachaKind = "ECHO"
	BrachaReady BrachaKind = "READY"
)

// BrachaFrame is the wire format of the BRB layer, carried as the RC frame's
// Content field. Origin here is the BRB broadcaster, independent of the RC
// frame's own origin field.
type BrachaFrame struct {
	MsgID   int        `json:"msg_id"`
	Origin  NodeID     `json:"sender_id"`
	Content string     `json:"content"`
	Kind    BrachaKind `json:"msg_type"`
}

func NewBrachaFrame(origin NodeID, content string, kind BrachaKind) BrachaFrame {
	return BrachaFrame{MsgID: MsgBracha, Origin: origin, Content: content, Kind: kind}
}

func (f BrachaFrame) Key() Key {
	return NewKey(f.Origin, f.Content)
}

// Encode serializes the frame for embedding as an RC content string.
func (f BrachaFrame) Encode() (string, error) {
	if f.MsgID == 0 {
		f.MsgID = MsgBracha
	}
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeBrachaFrame attempts to parse an RC-delivered content string as a
// Bracha frame. A parsing failure is not an error condition for the caller:
// it means the payload belongs to a different layer or is malformed, and the
// caller should fall through to its default deliver action (§7).
func DecodeBrachaFrame(content string) (BrachaFrame, bool) {
	var f BrachaFrame
	if err := json.Unmarshal([]byte(content), &f); err != nil {
		return BrachaFrame{}, false
	}
	if f.MsgID != MsgBracha || f.Kind == "" {
		return BrachaFrame{}, false
	}
	return f, true
}

// RCOFrame is the wire format of the RCO layer, carried as the BRB layer's
// Content field.
type RCOFrame struct {
	MsgID       int         `json:"msg_id"`
	Origin      NodeID      `json:"sender_id"`
	Content     string      `json:"content"`
	VectorClock VectorClock `json:"vector_clock"`
}

func NewRCOFrame(origin NodeID, content string, vc VectorClock) RCOFrame {
	return RCOFrame{MsgID: MsgRCO, Origin: origin, Content: content, VectorClock: vc.Clone()}
}

func (f RCOFrame) Key() Key {
	return NewKey(f.Origin, f.Content)
}

func (f RCOFrame) Encode() (string, error) {
	if f.MsgID == 0 {
		f.MsgID = MsgRCO
	}
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeRCOFrame attempts to parse a BRB-delivered content string as an RCO
// frame, mirroring DecodeBrachaFrame's fall-through-on-failure contract.
func DecodeRCOFrame(content string) (RCOFrame, bool) {
	var f RCOFrame
	if err := json.Unmarshal([]byte(content), &f); err != nil {
		return RCOFrame{}, false
	}
	if f.MsgID != MsgRCO {
		return RCOFrame{}, false
	}
	return f, true
}
