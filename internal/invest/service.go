package invest

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"BundleHub-Chain/internal/bundle"
	xerrors "BundleHub-Chain/internal/errors"
	"BundleHub-Chain/internal/history"
	"BundleHub-Chain/internal/ledger"
	"BundleHub-Chain/internal/notify"
	"BundleHub-Chain/internal/observability/metrics"
	"BundleHub-Chain/internal/oracle"
	"BundleHub-Chain/internal/wallet"
	"BundleHub-Chain/internal/web3"
	"BundleHub-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ServiceConfig 汇总编排器运行所需的地址与参数。
type ServiceConfig struct {
	Factory         common.Address
	Router          common.Address
	PricingToken    common.Address
	PricingDecimals uint8
	SlippageBps     uint32
	SwapDeadline    time.Duration
}

// Service 是投资编排器的入口：校验请求、刷新快照、选择策略、提交计划，并把
// 结果写入操作记录与事件流。每次请求都基于新鲜的链上快照，服务自身无状态。
type Service struct {
	cfg       ServiceConfig
	reader    web3.Reader
	view      *bundle.View
	tokens    *bundle.Resolver
	estimator *Estimator
	selector  *Selector
	assembler *SwapAssembler
	planner   *Planner
	signer    *wallet.Signer
	store     history.Store
	events    notify.Publisher
}

// NewService 构建编排服务。store 与 events 可为 nil，此时跳过记录与发布。
func NewService(cfg ServiceConfig, reader web3.Reader, view *bundle.View, signer *wallet.Signer, store history.Store, events notify.Publisher) (*Service, error) {
	if reader == nil || view == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "编排服务缺少链访问依赖")
	}
	if signer == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "编排服务缺少签名代理")
	}
	tokens := view.Tokens()
	allowance := NewAllowanceManager(tokens)

	var router *oracle.Router
	var quoter oracle.Quoter
	if cfg.Router != (common.Address{}) {
		router = oracle.NewRouter(cfg.Router, reader)
		quoter = router
	}

	return &Service{
		cfg:       cfg,
		reader:    reader,
		view:      view,
		tokens:    tokens,
		estimator: NewEstimator(quoter, cfg.PricingToken, cfg.PricingDecimals, cfg.SlippageBps),
		selector:  NewSelector(reader, tokens, allowance),
		assembler: NewSwapAssembler(reader, router, allowance, signer, cfg.SwapDeadline),
		planner:   NewPlanner(signer),
		signer:    signer,
		store:     store,
		events:    events,
	}, nil
}

// InvestRequest 描述一次投资。填写 Shares 走精确组篮；填写 InputToken 与
// InputAmount 走单币路径。InputToken 留空或为零地址表示原生币。
type InvestRequest struct {
	Bundle      string `json:"bundle"`
	Shares      string `json:"shares,omitempty"`
	InputToken  string `json:"input_token,omitempty"`
	InputAmount string `json:"input_amount,omitempty"`
	SlippageBps uint32 `json:"slippage_bps,omitempty"`
}

// RedeemRequest 描述一次赎回。OutputToken 留空表示赎回为成分篮。
type RedeemRequest struct {
	Bundle      string `json:"bundle"`
	Shares      string `json:"shares"`
	OutputToken string `json:"output_token,omitempty"`
	MinOut      string `json:"min_out,omitempty"`
}

// ActionResult 是一次操作的最终结果。
type ActionResult struct {
	ActionID    string `json:"action_id"`
	Bundle      string `json:"bundle"`
	Action      string `json:"action"`
	Strategy    string `json:"strategy"`
	TxHash      string `json:"tx_hash"`
	Atomic      bool   `json:"atomic"`
	Approvals   int    `json:"approvals"`
	Shares      string `json:"shares,omitempty"`
	MinShares   string `json:"min_shares,omitempty"`
	Approximate bool   `json:"approximate,omitempty"`
}

// MintPreview 是投资预估，不触发任何链上写入。
type MintPreview struct {
	Bundle      string   `json:"bundle"`
	Shares      string   `json:"shares"`
	MinShares   string   `json:"min_shares"`
	SlippageBps uint32   `json:"slippage_bps"`
	Approximate bool     `json:"approximate"`
	Required    []string `json:"required_amounts,omitempty"`
}

// ComponentAmount 是赎回预估中的一项成分支出。
type ComponentAmount struct {
	Token  string `json:"token"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

// RedeemPreview 是赎回预估。
type RedeemPreview struct {
	Bundle  string            `json:"bundle"`
	Shares  string            `json:"shares"`
	Payouts []ComponentAmount `json:"payouts"`
}

func (s *Service) parseBundle(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("bundle 地址 %q 不合法", raw))
	}
	return common.HexToAddress(raw), nil
}

func (s *Service) parseToken(ctx context.Context, raw string) (bundle.TokenRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "native") {
		return s.tokens.Ref(ctx, ledger.NativeAddress), nil
	}
	if !common.IsHexAddress(raw) {
		return bundle.TokenRef{}, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("代币地址 %q 不合法", raw))
	}
	return s.tokens.Ref(ctx, common.HexToAddress(raw)), nil
}

// PreviewInvest 估算一次单币投资，可得份额不足时返回 BELOW_MINIMUM_INVESTMENT。
func (s *Service) PreviewInvest(ctx context.Context, req InvestRequest) (*MintPreview, error) {
	address, err := s.parseBundle(req.Bundle)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.view.Snapshot(ctx, address, s.signer.Address())
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Shares) != "" {
		shares, err := bundle.ToNative(req.Shares, bundle.NativeDecimals)
		if err != nil {
			return nil, err
		}
		required, err := ledger.NewBundle(address, s.reader).RequiredAmounts(ctx, shares)
		if err != nil {
			return nil, fmt.Errorf("查询成分需求量失败: %w", err)
		}
		preview := &MintPreview{
			Bundle:    address.Hex(),
			Shares:    bundle.ToHuman(shares, bundle.NativeDecimals),
			MinShares: bundle.ToHuman(shares, bundle.NativeDecimals),
		}
		for i, amount := range required {
			preview.Required = append(preview.Required, fmt.Sprintf("%s %s",
				bundle.ToHuman(amount, snapshot.Components[i].Token.Decimals),
				snapshot.Components[i].Token.Symbol))
		}
		return preview, nil
	}

	input, err := s.parseToken(ctx, req.InputToken)
	if err != nil {
		return nil, err
	}
	amount, err := bundle.NewAmount(req.InputAmount, input.Decimals)
	if err != nil {
		return nil, err
	}
	estimate, err := s.estimator.Estimate(ctx, snapshot, input, amount, req.SlippageBps)
	if err != nil {
		return nil, err
	}
	return &MintPreview{
		Bundle:      address.Hex(),
		Shares:      bundle.ToHuman(estimate.Shares, bundle.NativeDecimals),
		MinShares:   bundle.ToHuman(estimate.MinShares, bundle.NativeDecimals),
		SlippageBps: estimate.SlippageBps,
		Approximate: estimate.Approximate,
	}, nil
}

// PreviewRedeem 估算赎回 shares 份可得的各成分数量。
func (s *Service) PreviewRedeem(ctx context.Context, req RedeemRequest) (*RedeemPreview, error) {
	address, err := s.parseBundle(req.Bundle)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.view.Snapshot(ctx, address, s.signer.Address())
	if err != nil {
		return nil, err
	}
	shares, err := bundle.ToNative(req.Shares, bundle.NativeDecimals)
	if err != nil {
		return nil, err
	}
	amounts, err := ledger.NewBundle(address, s.reader).RedeemAmounts(ctx, shares)
	if err != nil {
		return nil, fmt.Errorf("查询赎回支出失败: %w", err)
	}
	preview := &RedeemPreview{
		Bundle: address.Hex(),
		Shares: bundle.ToHuman(shares, bundle.NativeDecimals),
	}
	for i, amount := range amounts {
		if i >= len(snapshot.Components) {
			break
		}
		component := snapshot.Components[i].Token
		preview.Payouts = append(preview.Payouts, ComponentAmount{
			Token:  component.Address.Hex(),
			Symbol: component.Symbol,
			Amount: bundle.ToHuman(amount, component.Decimals),
		})
	}
	return preview, nil
}

// Invest 执行一次投资：精确组篮或单币路径。单币直投在合约不支持时自动降级
// 为换币组篮，其他失败原因不触发降级。
func (s *Service) Invest(ctx context.Context, req InvestRequest) (*ActionResult, error) {
	actionID := uuid.NewString()
	started := time.Now()
	address, err := s.parseBundle(req.Bundle)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.view.Snapshot(ctx, address, s.signer.Address())
	if err != nil {
		return nil, err
	}

	var (
		result *ActionResult
		runErr error
	)
	if strings.TrimSpace(req.Shares) != "" {
		result, runErr = s.investExact(ctx, actionID, snapshot, req)
	} else {
		result, runErr = s.investSingle(ctx, actionID, snapshot, req)
	}

	s.finalize(ctx, actionID, history.ActionInvest, snapshot, req, result, runErr, started)
	return result, runErr
}

func (s *Service) investExact(ctx context.Context, actionID string, snapshot *bundle.BundleSnapshot, req InvestRequest) (*ActionResult, error) {
	shares, err := bundle.ToNative(req.Shares, bundle.NativeDecimals)
	if err != nil {
		return nil, err
	}
	plan, err := s.selector.BuildExactBasket(ctx, snapshot, s.signer.Address(), shares)
	if err != nil {
		return nil, err
	}
	submission, err := s.planner.Submit(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &ActionResult{
		ActionID:  actionID,
		Bundle:    snapshot.Address.Hex(),
		Action:    string(history.ActionInvest),
		Strategy:  string(StrategyExactBasket),
		TxHash:    submission.TxHash.Hex(),
		Atomic:    submission.Atomic,
		Approvals: plan.Approvals(),
		Shares:    bundle.ToHuman(shares, bundle.NativeDecimals),
		MinShares: bundle.ToHuman(shares, bundle.NativeDecimals),
	}, nil
}

func (s *Service) investSingle(ctx context.Context, actionID string, snapshot *bundle.BundleSnapshot, req InvestRequest) (*ActionResult, error) {
	input, err := s.parseToken(ctx, req.InputToken)
	if err != nil {
		return nil, err
	}
	amount, err := bundle.NewAmount(req.InputAmount, input.Decimals)
	if err != nil {
		return nil, err
	}
	estimate, err := s.estimator.Estimate(ctx, snapshot, input, amount, req.SlippageBps)
	if err != nil {
		return nil, err
	}

	plan, err := s.selector.BuildSingleDirect(ctx, snapshot, s.signer.Address(), input, amount, estimate.MinShares)
	if err != nil {
		return nil, err
	}
	submission, err := s.planner.Submit(ctx, plan)
	if err == nil {
		return &ActionResult{
			ActionID:    actionID,
			Bundle:      snapshot.Address.Hex(),
			Action:      string(history.ActionInvest),
			Strategy:    string(StrategySingleDirect),
			TxHash:      submission.TxHash.Hex(),
			Atomic:      submission.Atomic,
			Approvals:   plan.Approvals(),
			Shares:      bundle.ToHuman(estimate.Shares, bundle.NativeDecimals),
			MinShares:   bundle.ToHuman(estimate.MinShares, bundle.NativeDecimals),
			Approximate: estimate.Approximate,
		}, nil
	}
	if !IsStrategyUnsupported(err) {
		return nil, err
	}

	// 合约缺少单币铸造入口：降级为换币组篮，目标份额取估算值对最小申购单位
	// 向下取整，保证换出的成分刚好覆盖一次精确铸造。
	metrics.ObserveFallback()
	logger.L().Info("单币直投不受支持，降级为换币组篮",
		slog.String("action_id", actionID),
		slog.String("bundle", snapshot.Symbol),
		slog.Any("cause", err),
	)
	targetShares := floorToUnit(estimate.Shares, snapshot.CreationUnit)
	if targetShares.Sign() <= 0 {
		return nil, xerrors.New(CodeBelowMinimum, "估算份额不足一个最小申购单位，无法换币组篮")
	}
	if err := s.assembler.AcquireComponents(ctx, snapshot, input, amount, targetShares); err != nil {
		return nil, err
	}
	plan, err = s.selector.BuildExactBasket(ctx, snapshot, s.signer.Address(), targetShares)
	if err != nil {
		return nil, err
	}
	submission, err = s.planner.Submit(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &ActionResult{
		ActionID:    actionID,
		Bundle:      snapshot.Address.Hex(),
		Action:      string(history.ActionInvest),
		Strategy:    string(StrategySingleViaSwap),
		TxHash:      submission.TxHash.Hex(),
		Atomic:      submission.Atomic,
		Approvals:   plan.Approvals(),
		Shares:      bundle.ToHuman(targetShares, bundle.NativeDecimals),
		MinShares:   bundle.ToHuman(targetShares, bundle.NativeDecimals),
		Approximate: estimate.Approximate,
	}, nil
}

// Redeem 执行一次赎回。
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (*ActionResult, error) {
	actionID := uuid.NewString()
	started := time.Now()
	address, err := s.parseBundle(req.Bundle)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.view.Snapshot(ctx, address, s.signer.Address())
	if err != nil {
		return nil, err
	}

	result, runErr := s.redeem(ctx, actionID, snapshot, req)
	investReq := InvestRequest{Bundle: req.Bundle, Shares: req.Shares, InputToken: req.OutputToken}
	s.finalize(ctx, actionID, history.ActionRedeem, snapshot, investReq, result, runErr, started)
	return result, runErr
}

func (s *Service) redeem(ctx context.Context, actionID string, snapshot *bundle.BundleSnapshot, req RedeemRequest) (*ActionResult, error) {
	shares, err := bundle.ToNative(req.Shares, bundle.NativeDecimals)
	if err != nil {
		return nil, err
	}

	var output *bundle.TokenRef
	var minOut *big.Int
	if strings.TrimSpace(req.OutputToken) != "" {
		ref, err := s.parseToken(ctx, req.OutputToken)
		if err != nil {
			return nil, err
		}
		output = &ref
		if strings.TrimSpace(req.MinOut) != "" {
			minOut, err = bundle.ToNative(req.MinOut, ref.Decimals)
			if err != nil {
				return nil, err
			}
		}
	}

	plan, strategy, err := s.selector.BuildRedeem(ctx, snapshot, shares, output, minOut)
	if err != nil {
		return nil, err
	}
	submission, err := s.planner.Submit(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &ActionResult{
		ActionID:  actionID,
		Bundle:    snapshot.Address.Hex(),
		Action:    string(history.ActionRedeem),
		Strategy:  string(strategy),
		TxHash:    submission.TxHash.Hex(),
		Atomic:    submission.Atomic,
		Approvals: plan.Approvals(),
		Shares:    bundle.ToHuman(shares, bundle.NativeDecimals),
	}, nil
}

// ListBundles 返回工厂名下全部 bundle 的展示信息。
func (s *Service) ListBundles(ctx context.Context) ([]*bundle.Info, error) {
	if s.cfg.Factory == (common.Address{}) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置 bundle 工厂地址")
	}
	return s.view.ListBundles(ctx, s.cfg.Factory, s.signer.Address())
}

// BundleInfo 返回单个 bundle 的展示信息。
func (s *Service) BundleInfo(ctx context.Context, rawAddress string) (*bundle.Info, error) {
	address, err := s.parseBundle(rawAddress)
	if err != nil {
		return nil, err
	}
	return s.view.Info(ctx, address, s.signer.Address())
}

// History 查询操作记录。
func (s *Service) History(ctx context.Context, opts history.ListOptions) ([]*history.Record, error) {
	if s.store == nil {
		return []*history.Record{}, nil
	}
	return s.store.List(ctx, opts)
}

// finalize 把结果写入操作记录、发布事件并记录审计与指标。记录失败只告警，
// 不影响已经发生的链上结果。
func (s *Service) finalize(ctx context.Context, actionID string, action history.Action, snapshot *bundle.BundleSnapshot, req InvestRequest, result *ActionResult, runErr error, started time.Time) {
	record := &history.Record{
		ID:          actionID,
		Bundle:      snapshot.Address.Hex(),
		Action:      action,
		InputToken:  req.InputToken,
		InputAmount: req.InputAmount,
		Status:      history.StatusSucceeded,
		CreatedAt:   time.Now().Unix(),
	}
	status := "succeeded"
	strategy := ""
	if result != nil {
		record.Strategy = result.Strategy
		record.Shares = result.Shares
		record.MinShares = result.MinShares
		record.TxHash = result.TxHash
		record.Atomic = result.Atomic
		record.Approvals = result.Approvals
		strategy = result.Strategy
		metrics.ObserveApprovals(result.Approvals)
	}
	if runErr != nil {
		status = "failed"
		record.Status = history.StatusFailed
		record.ErrorCode = string(xerrors.CodeOf(runErr))
		record.ErrorMessage = runErr.Error()
	}
	metrics.ObserveAction(string(action), strategy, status, time.Since(started))

	if s.store != nil {
		if err := s.store.Append(ctx, record); err != nil {
			logger.L().Warn("写入操作记录失败",
				slog.String("action_id", actionID),
				slog.Any("error", err),
			)
		}
	}
	if s.events != nil {
		event := notify.ActionEvent{
			ActionID: actionID,
			Bundle:   record.Bundle,
			Action:   string(action),
			Strategy: record.Strategy,
			TxHash:   record.TxHash,
			Status:   string(record.Status),
			Atomic:   record.Atomic,
			At:       record.CreatedAt,
		}
		if err := s.events.Publish(ctx, event); err != nil {
			logger.L().Warn("发布操作事件失败",
				slog.String("action_id", actionID),
				slog.Any("error", err),
			)
		}
	}
	logger.Audit().Info("用户操作完成",
		slog.String("action_id", actionID),
		slog.String("bundle", record.Bundle),
		slog.String("action", string(action)),
		slog.String("strategy", record.Strategy),
		slog.String("status", status),
		slog.String("tx_hash", record.TxHash),
		slog.Bool("atomic", record.Atomic),
		slog.Int("approvals", record.Approvals),
	)
}

// floorToUnit 把份额向下取整到最小申购单位的整数倍。
func floorToUnit(shares, unit *big.Int) *big.Int {
	if shares == nil {
		return new(big.Int)
	}
	if unit == nil || unit.Sign() <= 0 {
		return new(big.Int).Set(shares)
	}
	out := new(big.Int).Set(shares)
	remainder := new(big.Int).Mod(out, unit)
	return out.Sub(out, remainder)
}
