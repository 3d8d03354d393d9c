package invest

import (
	xerrors "BundleHub-Chain/internal/errors"
)

// 投资编排器的错误码。BELOW_MINIMUM_INVESTMENT 的错误信息必须包含
// 可行的最小投入金额；SUBMISSION_FAILED 必须携带失败的步骤序号。
const (
	CodeBelowMinimum        xerrors.Code = "BELOW_MINIMUM_INVESTMENT"
	CodeAllowanceFailed     xerrors.Code = "ALLOWANCE_FAILED"
	CodeStrategyUnsupported xerrors.Code = "STRATEGY_UNSUPPORTED"
	CodeSwapFailed          xerrors.Code = "SWAP_FAILED"
	CodeSubmissionFailed    xerrors.Code = "SUBMISSION_FAILED"
	CodeQuoteUnavailable    xerrors.Code = "QUOTE_UNAVAILABLE"
)

func init() {
	xerrors.Register(CodeBelowMinimum, xerrors.Attributes{
		Message:   "shares below minimum creation unit",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeAllowanceFailed, xerrors.Attributes{
		Message:   "token approval failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
	xerrors.Register(CodeStrategyUnsupported, xerrors.Attributes{
		Message:   "mint strategy not supported by ledger",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeSwapFailed, xerrors.Attributes{
		Message:   "component swap failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeSubmissionFailed, xerrors.Attributes{
		Message:   "transaction submission failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeQuoteUnavailable, xerrors.Attributes{
		Message:   "quote oracle unavailable",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
}
