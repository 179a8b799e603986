package entry

import (
	"fmt"
	"time"
)

// RecordType is the command a record carries.
type RecordType uint8

const (
	RecordPlaceLimit RecordType = iota + 1
	RecordPlaceMarket
	RecordCancel
	RecordCancelAll
	RecordChangeSize
	RecordDeposit
	RecordWithdraw
	RecordRegisterMarket
	RecordRegisterCustodian
	RecordRegisterUnderwriter
)

var recordTypeNames = map[RecordType]string{
	RecordPlaceLimit:          "place_limit",
	RecordPlaceMarket:         "place_market",
	RecordCancel:              "cancel",
	RecordCancelAll:           "cancel_all",
	RecordChangeSize:          "change_size",
	RecordDeposit:             "deposit",
	RecordWithdraw:            "withdraw",
	RecordRegisterMarket:      "register_market",
	RecordRegisterCustodian:   "register_custodian",
	RecordRegisterUnderwriter: "register_underwriter",
}

func (t RecordType) String() string {
	if s, ok := recordTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("RecordType(%d)", uint8(t))
}

// Record is one framed WAL entry.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
