package riskconfig

import "wallet-risk-lab/internal/domain"

// EventSignature binds a canonical event signature to the action it records.
type EventSignature struct {
	Signature string
	Kind      domain.TxKind
	Version   domain.ProtocolVersion
}

// V2Events are the cToken events tracked for Compound v2 markets.
// None of them index the account, which is ABI-encoded in data.
var V2Events = []EventSignature{
	{"Mint(address,uint256,uint256)", domain.TxKindSupply, domain.ProtocolVersionV2},
	{"Redeem(address,uint256,uint256)", domain.TxKindWithdraw, domain.ProtocolVersionV2},
	{"Borrow(address,uint256,uint256,uint256)", domain.TxKindBorrow, domain.ProtocolVersionV2},
	{"RepayBorrow(address,address,uint256,uint256,uint256)", domain.TxKindRepay, domain.ProtocolVersionV2},
	{"LiquidateBorrow(address,address,uint256,address,uint256)", domain.TxKindLiquidation, domain.ProtocolVersionV2},
}

// V3Events are the Comet events tracked for Compound v3 markets.
// Comet has no borrow or repay events: withdrawing the base asset past the
// supplied balance borrows it, and supplying it back repays.
var V3Events = []EventSignature{
	{"SupplyCollateral(address,address,address,uint256)", domain.TxKindSupply, domain.ProtocolVersionV3},
	{"WithdrawCollateral(address,address,address,uint256)", domain.TxKindWithdraw, domain.ProtocolVersionV3},
	{"Withdraw(address,address,uint256)", domain.TxKindBorrow, domain.ProtocolVersionV3},
	{"Supply(address,address,uint256)", domain.TxKindRepay, domain.ProtocolVersionV3},
	{"AbsorbDebt(address,address,uint256,uint256)", domain.TxKindLiquidation, domain.ProtocolVersionV3},
}

// AllEvents returns v2 and v3 event signatures.
func AllEvents() []EventSignature {
	out := make([]EventSignature, 0, len(V2Events)+len(V3Events))
	out = append(out, V2Events...)
	return append(out, V3Events...)
}
