package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/session"
	"github.com/aretw0/flashsol/pkg/solana"
	"github.com/aretw0/flashsol/pkg/units"
)

// CustomChoice asks for a free-form amount.
const CustomChoice = "custom"

var (
	buyPresets  = []string{"0.1", "0.5", "1", "5", "10"}
	sellPresets = []uint32{10, 25, 50, 100}
)

func buyChoices() []Choice {
	out := make([]Choice, 0, len(buyPresets)+1)
	for _, p := range buyPresets {
		out = append(out, Choice{Label: p + " SOL", Value: p})
	}
	return append(out, Choice{Label: "Custom", Value: CustomChoice})
}

func sellChoices() []Choice {
	out := make([]Choice, 0, len(sellPresets)+1)
	for _, p := range sellPresets {
		v := strconv.FormatUint(uint64(p), 10)
		out = append(out, Choice{Label: "Sell " + v + "%", Value: v})
	}
	return append(out, Choice{Label: "Sell X%", Value: CustomChoice})
}

// tradeReady checks a wallet exists and trading is unlocked. When the
// secure session expired it opens the security passkey entry instead.
func (o *Orchestrator) tradeReady(ctx context.Context, userID string) (*domain.Wallet, *Reply) {
	w, err := o.wallets.GetWallet(ctx, userID)
	if err != nil {
		r := errorReply(err)
		return nil, &r
	}
	active, err := o.sessions.Active(ctx, userID)
	if err != nil {
		r := errorReply(err)
		return nil, &r
	}
	if !active {
		r := o.startPasskey(ctx, userID, domain.PasskeySecurity, "Your secure session expired. Enter your passkey to unlock trading, then start again:")
		return nil, &r
	}
	return w, nil
}

func (o *Orchestrator) startBuy(ctx context.Context, userID string) Reply {
	if _, r := o.tradeReady(ctx, userID); r != nil {
		return *r
	}
	st := &domain.FlowState{Flow: domain.FlowBuy, Step: domain.StepAwaitingContractAddress}
	if err := o.state.SetFlow(ctx, userID, st); err != nil {
		return errorReply(err)
	}
	return prompt(st, "Enter the token contract address to buy:")
}

func (o *Orchestrator) buyInput(ctx context.Context, userID string, st *domain.FlowState, text string) (Reply, *tradeJob) {
	switch st.Step {
	case domain.StepAwaitingContractAddress:
		if !solana.IsMintAddress(text) {
			return retry(st, "That is not a valid token address. Enter the token contract address:"), nil
		}
		st.TokenAddress = text
		if info, ok := o.tokenInfo(ctx, text); ok {
			st.TokenName = info.Name
			st.TokenSymbol = info.Symbol
		}
		st.Step = domain.StepAwaitingAmount
		if err := o.state.SetFlow(ctx, userID, st); err != nil {
			return errorReply(err), nil
		}
		return prompt(st, fmt.Sprintf("How much SOL do you want to spend on %s?", tokenLabel(st)), buyChoices()...), nil

	case domain.StepAwaitingAmount, domain.StepAwaitingCustomAmount:
		if st.Step == domain.StepAwaitingAmount && strings.EqualFold(text, CustomChoice) {
			st.Step = domain.StepAwaitingCustomAmount
			if err := o.state.SetFlow(ctx, userID, st); err != nil {
				return errorReply(err), nil
			}
			return prompt(st, "Enter the SOL amount to spend:"), nil
		}
		lamports, err := units.ParseUnits(text, domain.SOLDecimals)
		if err != nil || lamports == 0 {
			return retry(st, "Enter a positive SOL amount, e.g. 0.25:"), nil
		}
		return Reply{}, &tradeJob{flow: *st, req: domain.TradeRequest{
			Direction: domain.Buy,
			TokenMint: st.TokenAddress,
			Amount:    text,
		}}
	}
	return o.staleStep(ctx, userID, st), nil
}

func (o *Orchestrator) startSell(ctx context.Context, userID string) Reply {
	w, r := o.tradeReady(ctx, userID)
	if r != nil {
		return *r
	}
	holdings, err := o.holdings(ctx, userID, w.PublicKey, true)
	if err != nil {
		return errorReply(err)
	}
	if len(holdings) == 0 {
		return Reply{Text: "You have no tokens to sell."}
	}

	st := &domain.FlowState{Flow: domain.FlowSell, Step: domain.StepAwaitingContractAddress}
	if err := o.state.SetFlow(ctx, userID, st); err != nil {
		return errorReply(err)
	}
	choices := make([]Choice, 0, len(holdings))
	for _, h := range holdings {
		choices = append(choices, Choice{Label: holdingLabel(h), Value: h.Mint})
	}
	return prompt(st, "Select the token to sell, or enter its contract address:", choices...)
}

func (o *Orchestrator) sellInput(ctx context.Context, userID string, st *domain.FlowState, text string) (Reply, *tradeJob) {
	switch st.Step {
	case domain.StepAwaitingContractAddress:
		if !solana.IsMintAddress(text) {
			return retry(st, "That is not a valid token address. Select the token to sell:"), nil
		}
		w, err := o.wallets.GetWallet(ctx, userID)
		if err != nil {
			return errorReply(err), nil
		}
		holdings, err := o.holdings(ctx, userID, w.PublicKey, true)
		if err != nil {
			return errorReply(err), nil
		}
		h, ok := findHolding(holdings, text)
		if !ok {
			return retry(st, "You don't hold that token. Select the token to sell:"), nil
		}
		st.TokenAddress = h.Mint
		st.TokenName = h.Name
		st.TokenSymbol = h.Symbol
		st.Step = domain.StepAwaitingAmount
		if err := o.state.SetFlow(ctx, userID, st); err != nil {
			return errorReply(err), nil
		}
		return prompt(st, fmt.Sprintf("You hold %s. How much do you want to sell?", holdingLabel(h)), sellChoices()...), nil

	case domain.StepAwaitingAmount, domain.StepAwaitingCustomAmount:
		if st.Step == domain.StepAwaitingAmount && strings.EqualFold(text, CustomChoice) {
			st.Step = domain.StepAwaitingCustomAmount
			if err := o.state.SetFlow(ctx, userID, st); err != nil {
				return errorReply(err), nil
			}
			return prompt(st, "Enter the percentage to sell (1-100):"), nil
		}
		pct, err := parsePercent(text)
		if err != nil {
			return retry(st, "Enter a whole percentage between 1 and 100:"), nil
		}
		return Reply{}, &tradeJob{flow: *st, req: domain.TradeRequest{
			Direction: domain.Sell,
			TokenMint: st.TokenAddress,
			Percent:   pct,
		}}
	}
	return o.staleStep(ctx, userID, st), nil
}

// tradeJob is a trade whose flow reached its final step.
type tradeJob struct {
	flow domain.FlowState
	req  domain.TradeRequest
}

// executeTrade runs job and clears its flow whatever the outcome, unless
// another trade holds the processing lock and so owns the flow. It runs
// outside the per-user section, so other turns of the user answer at once.
func (o *Orchestrator) executeTrade(ctx context.Context, userID string, job *tradeJob) Reply {
	busy := false
	defer func() {
		if !busy {
			o.finishFlow(context.WithoutCancel(ctx), userID, &job.flow)
		}
	}()

	kp, err := o.sessions.Credential(ctx, userID)
	if err != nil {
		return errorReply(err)
	}
	w, err := o.wallets.GetWallet(ctx, userID)
	if err != nil {
		return errorReply(err)
	}
	req := job.req
	req.SlippageBps = w.Slippage()

	res, err := o.trader.Execute(ctx, userID, kp, req)
	if err != nil {
		busy = errors.Is(err, domain.ErrOperationInProgress)
		return errorReply(err)
	}

	// Holdings changed; drop the cached listings.
	for _, key := range []string{session.PortfolioKey(userID), session.SellPortfolioKey(userID)} {
		if err := o.state.DeleteState(ctx, key); err != nil {
			o.logger.Warn("Failed to drop cached holdings", "user_id", userID, "key", key, "err", err)
		}
	}

	return Reply{Text: tradeText(&job.flow, req, res), Trade: res}
}

// finishFlow clears the flow that ran a trade unless the user already
// moved on to another one.
func (o *Orchestrator) finishFlow(ctx context.Context, userID string, done *domain.FlowState) {
	_ = o.state.WithLock(ctx, userID, func(ctx context.Context) error {
		cur, err := o.state.Flow(ctx, userID)
		if err != nil {
			o.logger.Warn("Failed to clear flow after trade", "user_id", userID, "err", err)
			return nil
		}
		if cur == nil || cur.Flow != done.Flow || cur.Step != done.Step || cur.TokenAddress != done.TokenAddress {
			return nil
		}
		if err := o.state.ClearFlow(ctx, userID); err != nil {
			o.logger.Warn("Failed to clear flow after trade", "user_id", userID, "err", err)
		}
		return nil
	})
}

func (o *Orchestrator) staleStep(ctx context.Context, userID string, st *domain.FlowState) Reply {
	o.logger.Warn("Flow in unexpected step, clearing", "user_id", userID, "flow", st.Flow, "step", st.Step)
	o.clearFlow(ctx, userID)
	return failure(KindNoFlow, "That flow expired. Please start again.")
}

func tradeText(st *domain.FlowState, req domain.TradeRequest, res *domain.TradeResult) string {
	token := st.TokenSymbol
	if token == "" {
		token = shortMint(req.TokenMint)
	}
	var b strings.Builder
	if req.Direction == domain.Buy {
		fmt.Fprintf(&b, "Bought %s %s for %s SOL.",
			units.FormatRounded(res.OutAmount, res.OutDecimals, 6), token,
			units.FormatUnits(res.InAmount, domain.SOLDecimals))
	} else {
		fmt.Fprintf(&b, "Sold %d%% of %s for %s SOL.",
			req.Percent, token, units.FormatRounded(res.OutAmount, domain.SOLDecimals, 6))
	}
	fmt.Fprintf(&b, "\nTx: %s%s", ExplorerURL, res.TxID)
	return b.String()
}

func parsePercent(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSuffix(s, "%"), 10, 32)
	if err != nil || n == 0 || n > 100 {
		return 0, fmt.Errorf("invalid percentage %q", s)
	}
	return uint32(n), nil
}

func shortMint(m string) string {
	if len(m) <= 10 {
		return m
	}
	return m[:4] + "..." + m[len(m)-4:]
}

func holdingLabel(h domain.Holding) string {
	name := h.Symbol
	if name == "" {
		name = shortMint(h.Mint)
	}
	return name + " ~ " + units.FormatRounded(h.Amount, h.Decimals, 2)
}

// tokenLabel names the token of a flow as "Name (SYMBOL)" when known.
func tokenLabel(st *domain.FlowState) string {
	switch {
	case st.TokenName != "" && st.TokenSymbol != "":
		return st.TokenName + " (" + st.TokenSymbol + ")"
	case st.TokenSymbol != "":
		return st.TokenSymbol
	}
	return shortMint(st.TokenAddress)
}

func findHolding(hs []domain.Holding, mint string) (domain.Holding, bool) {
	for _, h := range hs {
		if h.Mint == mint {
			return h, true
		}
	}
	return domain.Holding{}, false
}

// holdings reads the cached listing or fetches it from the chain.
func (o *Orchestrator) holdings(ctx context.Context, userID, owner string, sell bool) ([]domain.Holding, error) {
	cached, ok, err := o.state.Portfolio(ctx, userID, sell)
	if err != nil {
		return nil, err
	}
	if ok {
		return cached, nil
	}
	hs, err := o.chain.Holdings(ctx, owner)
	if err != nil {
		o.logger.Warn("Failed to fetch holdings", "user_id", userID, "err", err)
		return nil, fmt.Errorf("%w: %v", errHoldingsUnavailable, err)
	}
	o.nameHoldings(ctx, hs)
	if err := o.state.SetPortfolio(ctx, userID, sell, hs); err != nil {
		return nil, err
	}
	return hs, nil
}

// nameHoldings fills names and symbols in place. Mints without metadata
// keep their address as label.
func (o *Orchestrator) nameHoldings(ctx context.Context, hs []domain.Holding) {
	if o.metadata == nil || len(hs) == 0 {
		return
	}
	mints := make([]string, len(hs))
	for i, h := range hs {
		mints[i] = h.Mint
	}
	infos, err := o.metadata.Assets(ctx, mints)
	if err != nil {
		o.logger.Warn("Token metadata unavailable", "mints", len(mints), "err", err)
		return
	}
	for i := range hs {
		if info, ok := infos[hs[i].Mint]; ok {
			hs[i].Name = info.Name
			hs[i].Symbol = info.Symbol
		}
	}
}

// tokenInfo looks up the metadata of mint, best-effort.
func (o *Orchestrator) tokenInfo(ctx context.Context, mint string) (*domain.TokenInfo, bool) {
	if o.metadata == nil {
		return nil, false
	}
	info, err := o.metadata.Asset(ctx, mint)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn("Token metadata unavailable", "mint", mint, "err", err)
		}
		return nil, false
	}
	return info, true
}
