package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/flashsol/pkg/credential"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/session"
	"github.com/aretw0/flashsol/pkg/solana"
	"github.com/aretw0/flashsol/pkg/units"
)

func (o *Orchestrator) startSlippage(ctx context.Context, userID string) Reply {
	w, err := o.wallets.GetWallet(ctx, userID)
	if err != nil {
		return errorReply(err)
	}
	st := &domain.FlowState{Flow: domain.FlowSlippage, Step: domain.StepAwaitingValue}
	if err := o.state.SetFlow(ctx, userID, st); err != nil {
		return errorReply(err)
	}
	return prompt(st, fmt.Sprintf("Your current slippage is %s%%.\nEnter your preferred slippage %% (e.g. 1 for 1%%):", units.FormatBps(w.Slippage())))
}

func (o *Orchestrator) slippageInput(ctx context.Context, userID, text string) Reply {
	bps, err := units.ParsePercentBps(text)
	if err != nil {
		st := &domain.FlowState{Flow: domain.FlowSlippage, Step: domain.StepAwaitingValue}
		return retry(st, "Enter a percentage above 0 and at most 100, e.g. 2.5:")
	}
	if err := o.wallets.SetSlippage(ctx, userID, bps); err != nil {
		o.clearFlow(ctx, userID)
		return errorReply(err)
	}
	if err := o.state.ClearFlow(ctx, userID); err != nil {
		return errorReply(err)
	}
	o.logger.Info("Slippage updated", "user_id", userID, "slippage_bps", bps)
	return Reply{Text: fmt.Sprintf("Slippage set to %s%%.", units.FormatBps(bps))}
}

func (o *Orchestrator) startConnect(ctx context.Context, userID string) Reply {
	w, err := o.wallets.GetWallet(ctx, userID)
	switch {
	case err == nil:
		return failure(KindWalletExists, fmt.Sprintf("Wallet %s is already connected. Disconnect it first.", w.PublicKey))
	case !errors.Is(err, domain.ErrWalletNotFound):
		return errorReply(err)
	}
	st := &domain.FlowState{Flow: domain.FlowConnect, Step: domain.StepAwaitingPrivateKey}
	if err := o.state.SetFlow(ctx, userID, st); err != nil {
		return errorReply(err)
	}
	return prompt(st, "Enter your private key to connect an existing wallet:")
}

// connectInput never echoes or logs the secret. The keypair moves on to the
// passkey entry sealed.
func (o *Orchestrator) connectInput(ctx context.Context, userID, text string) Reply {
	kp, err := solana.KeypairFromSecret(text)
	if err != nil {
		st := &domain.FlowState{Flow: domain.FlowConnect, Step: domain.StepAwaitingPrivateKey}
		return retry(st, "That private key is not valid. Enter your private key:")
	}
	if err := o.state.ClearFlow(ctx, userID); err != nil {
		return errorReply(err)
	}
	return o.pendWallet(ctx, userID, domain.PasskeyConnect, kp,
		fmt.Sprintf("Set a 4-6 digit passkey for wallet %s:", kp.PublicKey()))
}

// wallet shows the user's wallet or generates a new one.
func (o *Orchestrator) wallet(ctx context.Context, userID string) Reply {
	w, err := o.wallets.GetWallet(ctx, userID)
	if err == nil {
		balance := "unavailable"
		if lamports, err := o.chain.Balance(ctx, w.PublicKey); err == nil {
			balance = units.FormatRounded(lamports, domain.SOLDecimals, 6) + " SOL"
		} else {
			o.logger.Warn("Failed to fetch balance", "user_id", userID, "err", err)
		}
		return Reply{Text: fmt.Sprintf("Your wallet:\nPublic key: %s\nBalance: %s", w.PublicKey, balance)}
	}
	if !errors.Is(err, domain.ErrWalletNotFound) {
		return errorReply(err)
	}

	kp, err := solana.NewKeypair()
	if err != nil {
		return errorReply(err)
	}
	o.logger.Info("Generated wallet", "user_id", userID, "public_key", kp.PublicKey().String())
	return o.pendWallet(ctx, userID, domain.PasskeyNewWallet, kp, fmt.Sprintf(
		"New wallet %s.\nIf you forget your passkey you cannot retrieve your private key. Never share your private key.\nSet a 4-6 digit passkey:",
		kp.PublicKey()))
}

// pendWallet parks a sealed keypair in the passkey entry until the user
// chooses a passkey.
func (o *Orchestrator) pendWallet(ctx context.Context, userID string, pctx domain.PasskeyContext, kp *solana.Keypair, text string) Reply {
	sealed, err := o.sessions.Seal(kp)
	if err != nil {
		return errorReply(err)
	}
	st := &domain.PasskeyState{Context: pctx, PublicKey: kp.PublicKey().String(), Pending: &sealed}
	if err := o.state.SetPasskey(ctx, userID, st); err != nil {
		return errorReply(err)
	}
	return Reply{Text: text, AwaitingPasskey: true}
}

// startPasskey asks for the passkey of an existing wallet.
func (o *Orchestrator) startPasskey(ctx context.Context, userID string, pctx domain.PasskeyContext, text string) Reply {
	w, err := o.wallets.GetWallet(ctx, userID)
	if err != nil {
		return errorReply(err)
	}
	st := &domain.PasskeyState{Context: pctx, PublicKey: w.PublicKey}
	if err := o.state.SetPasskey(ctx, userID, st); err != nil {
		return errorReply(err)
	}
	return Reply{Text: text, AwaitingPasskey: true}
}

func (o *Orchestrator) passkeyInput(ctx context.Context, userID string, pk *domain.PasskeyState, text string) Reply {
	switch pk.Context {
	case domain.PasskeyNewWallet, domain.PasskeyConnect:
		return o.createWallet(ctx, userID, pk, text)
	case domain.PasskeySecurity, domain.PasskeyDisconnect, domain.PasskeyExport:
		w, err := o.wallets.GetWallet(ctx, userID)
		if err != nil {
			o.clearPasskey(ctx, userID)
			return errorReply(err)
		}
		if err := credential.VerifyPasskey(w.PasskeyHash, text); err != nil {
			o.logger.Info("Wrong passkey", "user_id", userID, "context", pk.Context)
			r := failure(KindInvalidPasskey, "Wrong passkey. Try again:")
			r.AwaitingPasskey = true
			return r
		}
		if err := o.state.ClearPasskey(ctx, userID); err != nil {
			return errorReply(err)
		}
		switch pk.Context {
		case domain.PasskeyDisconnect:
			return o.disconnect(ctx, userID)
		case domain.PasskeyExport:
			return o.exportKey(userID, w)
		}
		if err := o.sessions.StartFromWallet(ctx, w); err != nil {
			return errorReply(err)
		}
		o.logger.Info("Secure session started", "user_id", userID)
		return Reply{Text: "Security check passed. Trading is unlocked for 24 hours."}
	default:
		o.clearPasskey(ctx, userID)
		return failure(KindNoFlow, "That request expired. Please start again.")
	}
}

func (o *Orchestrator) createWallet(ctx context.Context, userID string, pk *domain.PasskeyState, text string) Reply {
	if err := credential.ValidatePasskey(text); err != nil {
		r := failure(KindInvalidPasskey, "The passkey must be 4 to 6 digits. Try again:")
		r.AwaitingPasskey = true
		return r
	}
	if pk.Pending == nil {
		o.clearPasskey(ctx, userID)
		return failure(KindNoFlow, "That request expired. Please start again.")
	}
	hash, err := credential.HashPasskey(text)
	if err != nil {
		return errorReply(err)
	}

	w := &domain.Wallet{
		UserID:          userID,
		PublicKey:       pk.PublicKey,
		EncryptedSecret: *pk.Pending,
		PasskeyHash:     hash,
	}
	if err := o.wallets.SaveWallet(ctx, w); err != nil {
		o.logger.Error("Failed to save wallet", "user_id", userID, "err", err)
		return errorReply(err)
	}
	if err := o.state.ClearPasskey(ctx, userID); err != nil {
		return errorReply(err)
	}
	if err := o.sessions.StartFromWallet(ctx, w); err != nil {
		return errorReply(err)
	}

	verb := "created"
	if pk.Context == domain.PasskeyConnect {
		verb = "connected"
	}
	o.logger.Info("Wallet "+verb, "user_id", userID, "public_key", w.PublicKey)
	return Reply{Text: fmt.Sprintf("Wallet %s %s. Trading is unlocked for 24 hours.", w.PublicKey, verb)}
}

func (o *Orchestrator) disconnect(ctx context.Context, userID string) Reply {
	if err := o.wallets.DeleteWallet(ctx, userID); err != nil {
		return errorReply(err)
	}
	for _, key := range []string{
		session.SecureSessionKey(userID),
		session.PortfolioKey(userID),
		session.SellPortfolioKey(userID),
	} {
		if err := o.state.DeleteState(ctx, key); err != nil {
			o.logger.Warn("Failed to clear state on disconnect", "user_id", userID, "key", key, "err", err)
		}
	}
	o.logger.Info("Wallet disconnected", "user_id", userID)
	return Reply{Text: "Wallet disconnected."}
}

// exportKey reveals the wallet secret. The reply is marked sensitive and the
// secret is never logged.
func (o *Orchestrator) exportKey(userID string, w *domain.Wallet) Reply {
	kp, err := o.sessions.Unseal(w.EncryptedSecret)
	if err != nil {
		o.logger.Error("Failed to open wallet secret", "user_id", userID, "err", err)
		return errorReply(err)
	}
	o.logger.Info("Private key exported", "user_id", userID, "public_key", w.PublicKey)
	return Reply{
		Text:      "Your private key:\n" + kp.Secret() + "\nNever share it with anyone. Anyone holding it controls your funds.",
		Sensitive: true,
	}
}

// PortfolioPageSize is how many holdings a portfolio page lists.
const PortfolioPageSize = 10

// Portfolio shows one page of the user's holdings. Pages come from the
// cached listing while it lasts; out of range pages are clamped.
func (o *Orchestrator) Portfolio(ctx context.Context, userID string, page int) Reply {
	return o.portfolio(ctx, userID, page)
}

func (o *Orchestrator) portfolio(ctx context.Context, userID string, page int) Reply {
	w, err := o.wallets.GetWallet(ctx, userID)
	if err != nil {
		return errorReply(err)
	}
	holdings, err := o.holdings(ctx, userID, w.PublicKey, false)
	if err != nil {
		return errorReply(err)
	}

	var b strings.Builder
	b.WriteString("Your portfolio:")
	if lamports, err := o.chain.Balance(ctx, w.PublicKey); err == nil {
		fmt.Fprintf(&b, "\nSOL ~ %s", units.FormatRounded(lamports, domain.SOLDecimals, 4))
	}
	if len(holdings) == 0 {
		b.WriteString("\nNo tokens.")
		return Reply{Text: b.String()}
	}

	pages := (len(holdings) + PortfolioPageSize - 1) / PortfolioPageSize
	page = max(1, min(page, pages))
	start := (page - 1) * PortfolioPageSize
	end := min(start+PortfolioPageSize, len(holdings))
	for _, h := range holdings[start:end] {
		fmt.Fprintf(&b, "\n%s (%s)", holdingLabel(h), h.Mint)
	}
	fmt.Fprintf(&b, "\n\nPage %d of %d", page, pages)

	r := Reply{Text: b.String(), Page: &Page{Number: page, Total: pages}}
	if page > 1 {
		r.Choices = append(r.Choices, Choice{Label: "Back", Value: fmt.Sprintf("/%s %d", CommandPortfolio, page-1)})
	}
	if page < pages {
		r.Choices = append(r.Choices, Choice{Label: "Next", Value: fmt.Sprintf("/%s %d", CommandPortfolio, page+1)})
	}
	return r
}
