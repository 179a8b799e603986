package service

import (
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/encoding/protowire"

	"econia/domain/custody"
	"econia/domain/identity"
	"econia/domain/matching"
	"econia/domain/orderbook"
	"econia/domain/registry"
	entrywal "econia/infra/wal/entry"
)

// Command is one state-changing call as it is written to the entry WAL.
// Which fields are meaningful depends on Type.
type Command struct {
	Type        entrywal.RecordType
	MarketID    uint64
	Account     identity.AccountID
	CustodianID uint64

	Side        orderbook.Side
	Size        uint64
	Price       uint64
	Restriction matching.Restriction
	SelfMatch   matching.SelfMatch
	OrderID     orderbook.OrderID

	Asset  custody.Asset
	Amount uint64

	Base          registry.Asset
	Quote         registry.Asset
	Params        orderbook.Params
	UnderwriterID uint64
}

// Field numbers of the payload encoding. Zero values are omitted.
const (
	fieldMarketID protowire.Number = iota + 1
	fieldAccount
	fieldCustodianID
	fieldSide
	fieldSize
	fieldPrice
	fieldRestriction
	fieldSelfMatch
	fieldOrderHi
	fieldOrderLo
	fieldAsset
	fieldAmount
	fieldBase
	fieldQuote
	fieldLotSize
	fieldTickSize
	fieldMinSize
	fieldMaxOrdersPerSide
	fieldUnderwriterID
)

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendAsset(b []byte, num protowire.Number, a registry.Asset) []byte {
	if a.Kind == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, a.String())
}

// MarshalBinary encodes the command payload in protobuf wire format. The
// type travels in the WAL record header.
func (c Command) MarshalBinary() ([]byte, error) {
	if c.Params.MaxOrdersPerSide < 0 {
		return nil, fmt.Errorf("negative max orders per side %d", c.Params.MaxOrdersPerSide)
	}
	b := make([]byte, 0, 64)
	b = appendUint(b, fieldMarketID, c.MarketID)
	b = appendUint(b, fieldAccount, uint64(c.Account))
	b = appendUint(b, fieldCustodianID, c.CustodianID)
	b = appendUint(b, fieldSide, uint64(c.Side))
	b = appendUint(b, fieldSize, c.Size)
	b = appendUint(b, fieldPrice, c.Price)
	b = appendUint(b, fieldRestriction, uint64(c.Restriction))
	b = appendUint(b, fieldSelfMatch, uint64(c.SelfMatch))
	b = appendUint(b, fieldOrderHi, c.OrderID.Hi)
	b = appendUint(b, fieldOrderLo, c.OrderID.Lo)
	b = appendUint(b, fieldAsset, uint64(c.Asset))
	b = appendUint(b, fieldAmount, c.Amount)
	b = appendAsset(b, fieldBase, c.Base)
	b = appendAsset(b, fieldQuote, c.Quote)
	b = appendUint(b, fieldLotSize, c.Params.LotSize)
	b = appendUint(b, fieldTickSize, c.Params.TickSize)
	b = appendUint(b, fieldMinSize, c.Params.MinSize)
	b = appendUint(b, fieldMaxOrdersPerSide, uint64(c.Params.MaxOrdersPerSide))
	b = appendUint(b, fieldUnderwriterID, c.UnderwriterID)
	return b, nil
}

// decodeCommand parses a WAL record back into a Command.
func decodeCommand(rec *entrywal.Record) (Command, error) {
	c := Command{Type: rec.Type}
	b := rec.Data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Command{}, fmt.Errorf("seq %d: %w", rec.Seq, protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Command{}, fmt.Errorf("seq %d field %d: %w", rec.Seq, num, protowire.ParseError(n))
			}
			b = b[n:]
			c.setUint(num, v)
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return Command{}, fmt.Errorf("seq %d field %d: %w", rec.Seq, num, protowire.ParseError(n))
			}
			b = b[n:]
			if num != fieldBase && num != fieldQuote {
				continue
			}
			a, err := registry.ParseAsset(s)
			if err != nil {
				return Command{}, fmt.Errorf("seq %d: %w", rec.Seq, err)
			}
			if num == fieldBase {
				c.Base = a
			} else {
				c.Quote = a
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Command{}, fmt.Errorf("seq %d field %d: %w", rec.Seq, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return c, nil
}

func (c *Command) setUint(num protowire.Number, v uint64) {
	switch num {
	case fieldMarketID:
		c.MarketID = v
	case fieldAccount:
		c.Account = identity.AccountID(v)
	case fieldCustodianID:
		c.CustodianID = v
	case fieldSide:
		c.Side = orderbook.Side(v)
	case fieldSize:
		c.Size = v
	case fieldPrice:
		c.Price = v
	case fieldRestriction:
		c.Restriction = matching.Restriction(v)
	case fieldSelfMatch:
		c.SelfMatch = matching.SelfMatch(v)
	case fieldOrderHi:
		c.OrderID.Hi = v
	case fieldOrderLo:
		c.OrderID.Lo = v
	case fieldAsset:
		c.Asset = custody.Asset(v)
	case fieldAmount:
		c.Amount = v
	case fieldLotSize:
		c.Params.LotSize = v
	case fieldTickSize:
		c.Params.TickSize = v
	case fieldMinSize:
		c.Params.MinSize = v
	case fieldMaxOrdersPerSide:
		c.Params.MaxOrdersPerSide = int(v)
	case fieldUnderwriterID:
		c.UnderwriterID = v
	}
}

func (c Command) actor() identity.Actor {
	return identity.Actor{Account: c.Account, CustodianID: c.CustodianID}
}

// MarshalZerologObject logs the fields relevant to the command type.
func (c Command) MarshalZerologObject(e *zerolog.Event) {
	e.Stringer("type", c.Type)
	switch c.Type {
	case entrywal.RecordRegisterCustodian, entrywal.RecordRegisterUnderwriter:
		return
	case entrywal.RecordRegisterMarket:
		e.Stringer("base", c.Base).
			Stringer("quote", c.Quote).
			Uint64("lot", c.Params.LotSize).
			Uint64("tick", c.Params.TickSize).
			Uint64("min", c.Params.MinSize).
			Uint64("underwriter", c.UnderwriterID)
		return
	}

	e.Uint64("market", c.MarketID).
		Uint64("account", uint64(c.Account))
	if c.CustodianID != identity.NoCustodian {
		e.Uint64("custodian", c.CustodianID)
	}
	switch c.Type {
	case entrywal.RecordPlaceLimit, entrywal.RecordPlaceMarket:
		e.Stringer("side", c.Side).
			Uint64("size", c.Size).
			Stringer("restriction", c.Restriction).
			Stringer("self_match", c.SelfMatch)
		if c.Type == entrywal.RecordPlaceLimit {
			e.Uint64("price", c.Price)
		}
	case entrywal.RecordCancel:
		e.Stringer("order", c.OrderID)
	case entrywal.RecordCancelAll:
		e.Stringer("side", c.Side)
	case entrywal.RecordChangeSize:
		e.Stringer("order", c.OrderID).Uint64("size", c.Size)
	case entrywal.RecordDeposit, entrywal.RecordWithdraw:
		e.Stringer("asset", c.Asset).Uint64("amount", c.Amount)
	}
}
