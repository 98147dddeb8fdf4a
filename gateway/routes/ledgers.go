package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tdcchain/core"
	"tdcchain/crypto"
	"tdcchain/gateway/middleware"
	"tdcchain/native/access"
	"tdcchain/storage/journal"
)

const maxBodyBytes = 1 << 20

type ledgerRoutes struct {
	runtime *core.Runtime
	history History
	logger  *slog.Logger
}

type ledgerView struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Address      string `json:"address"`
	TotalSupply  string `json:"totalSupply,omitempty"`
	Symbol       string `json:"symbol,omitempty"`
	Collectibles string `json:"collectibles,omitempty"`
	Coins        string `json:"coins,omitempty"`
}

type roleRequest struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}

type uriRequest struct {
	URI string `json:"uri"`
}

type linkRequest struct {
	Ledger string `json:"ledger"`
}

type mintRequest struct {
	To     string  `json:"to"`
	Count  *uint64 `json:"count,omitempty"`
	Amount string  `json:"amount,omitempty"`
}

type transferRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID uint64 `json:"tokenId"`
}

type redeemRequest struct {
	By      string `json:"by,omitempty"`
	TokenID uint64 `json:"tokenId"`
}

type tokenView struct {
	ID    uint64 `json:"tokenId"`
	Owner string `json:"owner"`
	State string `json:"state,omitempty"`
}

type historyEntry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  string            `json:"createdAt"`
}

func decodeBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return invalid(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func requireCaller(r *http.Request) ([20]byte, error) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		return [20]byte{}, errCallerRequired
	}
	return caller, nil
}

func parseAccount(field, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, invalid(fmt.Sprintf("%s: %v", field, err))
	}
	return addr, nil
}

func parseTokenID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, invalid("token id must be an unsigned integer")
	}
	return id, nil
}

func ledgerRef(r *http.Request) string {
	return chi.URLParam(r, "ledger")
}

// operation names a write for tracing and metrics.
func operation(kind core.Kind, op string) string {
	return string(kind) + "." + op
}

// resolveTarget accepts a raw principal, which need not be deployed, or the
// name of a deployed ledger.
func resolveTarget(s *core.Session, ref string) ([20]byte, error) {
	if addr, err := crypto.ParseAddress(ref); err == nil {
		return addr, nil
	}
	d, err := s.Resolve(ref)
	if err != nil {
		return [20]byte{}, err
	}
	return d.Address, nil
}

func (h *ledgerRoutes) listLedgers(w http.ResponseWriter, r *http.Request) {
	deployments, err := h.runtime.Deployments(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]ledgerView, 0, len(deployments))
	for _, d := range deployments {
		out = append(out, ledgerView{Name: d.Name, Kind: string(d.Kind), Address: d.Principal()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ledgerRoutes) getLedger(w http.ResponseWriter, r *http.Request) {
	var view ledgerView
	err := h.runtime.View(r.Context(), func(s *core.Session) error {
		d, err := s.Resolve(ledgerRef(r))
		if err != nil {
			return err
		}
		view = ledgerView{Name: d.Name, Kind: string(d.Kind), Address: d.Principal()}
		switch d.Kind {
		case core.KindBadges:
			engine, err := s.Badges(d.Name)
			if err != nil {
				return err
			}
			supply, err := engine.TotalSupply()
			if err != nil {
				return err
			}
			view.TotalSupply = strconv.FormatUint(supply, 10)
			if ref, ok, err := engine.CollectiblesRef(); err != nil {
				return err
			} else if ok {
				view.Collectibles = crypto.FormatAddress(ref)
			}
			if ref, ok, err := engine.CoinsRef(); err != nil {
				return err
			} else if ok {
				view.Coins = crypto.FormatAddress(ref)
			}
		case core.KindCollectibles:
			engine, err := s.Collectibles(d.Name)
			if err != nil {
				return err
			}
			supply, err := engine.TotalSupply()
			if err != nil {
				return err
			}
			view.TotalSupply = strconv.FormatUint(supply, 10)
		case core.KindCoins:
			engine, err := s.Coins(d.Name)
			if err != nil {
				return err
			}
			supply, err := engine.TotalSupply()
			if err != nil {
				return err
			}
			view.TotalSupply = supply.String()
			view.Symbol = engine.Info().Symbol
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ledgerRoutes) totalSupply(w http.ResponseWriter, r *http.Request) {
	var supply string
	err := h.runtime.View(r.Context(), func(s *core.Session) error {
		d, err := s.Resolve(ledgerRef(r))
		if err != nil {
			return err
		}
		switch d.Kind {
		case core.KindBadges:
			engine, err := s.Badges(d.Name)
			if err != nil {
				return err
			}
			n, err := engine.TotalSupply()
			supply = strconv.FormatUint(n, 10)
			return err
		case core.KindCollectibles:
			engine, err := s.Collectibles(d.Name)
			if err != nil {
				return err
			}
			n, err := engine.TotalSupply()
			supply = strconv.FormatUint(n, 10)
			return err
		default:
			engine, err := s.Coins(d.Name)
			if err != nil {
				return err
			}
			n, err := engine.TotalSupply()
			if err != nil {
				return err
			}
			supply = n.String()
			return nil
		}
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"totalSupply": supply})
}

func (h *ledgerRoutes) balanceOf(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount("account", chi.URLParam(r, "account"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var balance string
	err = h.runtime.View(r.Context(), func(s *core.Session) error {
		d, err := s.Resolve(ledgerRef(r))
		if err != nil {
			return err
		}
		switch d.Kind {
		case core.KindBadges:
			engine, err := s.Badges(d.Name)
			if err != nil {
				return err
			}
			n, err := engine.BalanceOf(account)
			balance = strconv.FormatUint(n, 10)
			return err
		case core.KindCollectibles:
			engine, err := s.Collectibles(d.Name)
			if err != nil {
				return err
			}
			n, err := engine.BalanceOf(account)
			balance = strconv.FormatUint(n, 10)
			return err
		default:
			engine, err := s.Coins(d.Name)
			if err != nil {
				return err
			}
			n, err := engine.BalanceOf(account)
			if err != nil {
				return err
			}
			balance = n.String()
			return nil
		}
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": crypto.FormatAddress(account), "balance": balance})
}

func (h *ledgerRoutes) getToken(w http.ResponseWriter, r *http.Request) {
	id, err := parseTokenID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var view tokenView
	err = h.runtime.View(r.Context(), func(s *core.Session) error {
		d, err := s.Resolve(ledgerRef(r))
		if err != nil {
			return err
		}
		if d.Kind == core.KindBadges {
			engine, err := s.Badges(d.Name)
			if err != nil {
				return err
			}
			badge, err := engine.Badge(id)
			if err != nil {
				return err
			}
			view = tokenView{ID: id, Owner: crypto.FormatAddress(badge.Owner), State: badge.State.String()}
			return nil
		}
		engine, err := s.Collectibles(d.Name)
		if err != nil {
			return err
		}
		owner, err := engine.OwnerOf(id)
		if err != nil {
			return err
		}
		view = tokenView{ID: id, Owner: crypto.FormatAddress(owner)}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ledgerRoutes) tokenURI(w http.ResponseWriter, r *http.Request) {
	id, err := parseTokenID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var uri string
	err = h.runtime.View(r.Context(), func(s *core.Session) error {
		d, err := s.Resolve(ledgerRef(r))
		if err != nil {
			return err
		}
		if d.Kind == core.KindBadges {
			engine, err := s.Badges(d.Name)
			if err != nil {
				return err
			}
			uri, err = engine.TokenURI(id)
			return err
		}
		engine, err := s.Collectibles(d.Name)
		if err != nil {
			return err
		}
		uri, err = engine.TokenURI(id)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokenId": id, "uri": uri})
}

func (h *ledgerRoutes) getMetadata(w http.ResponseWriter, r *http.Request) {
	var baseURI, contractURI string
	err := h.runtime.View(r.Context(), func(s *core.Session) error {
		resolver, err := s.Metadata(ledgerRef(r))
		if err != nil {
			return err
		}
		if baseURI, err = resolver.BaseURI(); err != nil {
			return err
		}
		contractURI, err = resolver.ContractURI()
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"baseURI": baseURI, "contractURI": contractURI})
}

func (h *ledgerRoutes) hasRole(w http.ResponseWriter, r *http.Request) {
	role, err := access.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.fail(w, r, invalid(err.Error()))
		return
	}
	account, err := parseAccount("account", chi.URLParam(r, "account"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var held bool
	err = h.runtime.View(r.Context(), func(s *core.Session) error {
		roles, err := s.Access(ledgerRef(r))
		if err != nil {
			return err
		}
		held = roles.HasRole(role, account)
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"role":    access.RoleName(role),
		"account": crypto.FormatAddress(account),
		"hasRole": held,
	})
}

func (h *ledgerRoutes) getLinks(w http.ResponseWriter, r *http.Request) {
	links := map[string]string{}
	err := h.runtime.View(r.Context(), func(s *core.Session) error {
		engine, err := s.Badges(ledgerRef(r))
		if err != nil {
			return err
		}
		if ref, ok, err := engine.CollectiblesRef(); err != nil {
			return err
		} else if ok {
			links["collectibles"] = crypto.FormatAddress(ref)
		}
		if ref, ok, err := engine.CoinsRef(); err != nil {
			return err
		} else if ok {
			links["coins"] = crypto.FormatAddress(ref)
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *ledgerRoutes) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, fmt.Errorf("event journal disabled"))
		return
	}
	q := journal.Query{Type: strings.TrimSpace(r.URL.Query().Get("type"))}
	if raw := r.URL.Query().Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.fail(w, r, invalid("after must be an unsigned integer"))
			return
		}
		q.After = after
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.fail(w, r, invalid("limit must be a non-negative integer"))
			return
		}
		q.Limit = limit
	}
	err := h.runtime.View(r.Context(), func(s *core.Session) error {
		d, err := s.Resolve(ledgerRef(r))
		if err != nil {
			return err
		}
		q.Ledger = d.Principal()
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.history.History(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]historyEntry, 0, len(entries))
	for _, entry := range entries {
		evt, err := entry.Event()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out = append(out, historyEntry{
			Sequence:   entry.Sequence,
			Type:       evt.Type,
			Attributes: evt.Attributes,
			CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ledgerRoutes) changeRole(w http.ResponseWriter, r *http.Request, op string) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req roleRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		h.fail(w, r, invalid(err.Error()))
		return
	}
	account := caller
	if op != "renounce" || strings.TrimSpace(req.Account) != "" {
		if account, err = parseAccount("account", req.Account); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	err = h.runtime.Execute(r.Context(), "roles."+op, func(s *core.Session) error {
		roles, err := s.Access(ledgerRef(r))
		if err != nil {
			return err
		}
		switch op {
		case "grant":
			return roles.Grant(caller, role, account)
		case "revoke":
			return roles.Revoke(caller, role, account)
		default:
			return roles.Renounce(caller, role, account)
		}
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"role":    access.RoleName(role),
		"account": crypto.FormatAddress(account),
	})
}

func (h *ledgerRoutes) grantRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, "grant")
}

func (h *ledgerRoutes) revokeRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, "revoke")
}

func (h *ledgerRoutes) renounceRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, "renounce")
}

func (h *ledgerRoutes) setURI(w http.ResponseWriter, r *http.Request, contract bool) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req uriRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	op := "metadata.base_uri"
	if contract {
		op = "metadata.contract_uri"
	}
	err = h.runtime.Execute(r.Context(), op, func(s *core.Session) error {
		resolver, err := s.Metadata(ledgerRef(r))
		if err != nil {
			return err
		}
		if contract {
			return resolver.SetContractURI(caller, req.URI)
		}
		return resolver.SetBaseURI(caller, req.URI)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uri": req.URI})
}

func (h *ledgerRoutes) setBaseURI(w http.ResponseWriter, r *http.Request) {
	h.setURI(w, r, false)
}

func (h *ledgerRoutes) setContractURI(w http.ResponseWriter, r *http.Request) {
	h.setURI(w, r, true)
}

func (h *ledgerRoutes) link(w http.ResponseWriter, r *http.Request, coins bool) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req linkRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var target [20]byte
	op := operation(core.KindBadges, "link_collectibles")
	if coins {
		op = operation(core.KindBadges, "link_coins")
	}
	err = h.runtime.Execute(r.Context(), op, func(s *core.Session) error {
		engine, err := s.Badges(ledgerRef(r))
		if err != nil {
			return err
		}
		if target, err = resolveTarget(s, req.Ledger); err != nil {
			return err
		}
		if coins {
			return engine.SetCoinsRef(caller, target)
		}
		return engine.SetCollectiblesRef(caller, target)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ledger": crypto.FormatAddress(target)})
}

func (h *ledgerRoutes) linkCollectibles(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, false)
}

func (h *ledgerRoutes) linkCoins(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, true)
}

func (h *ledgerRoutes) mint(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var (
		kind    core.Kind
		tokenID uint64
		amount  *big.Int
	)
	err = h.runtime.View(r.Context(), func(s *core.Session) error {
		d, err := s.Resolve(ledgerRef(r))
		if err != nil {
			return err
		}
		kind = d.Kind
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if kind == core.KindCoins {
		value, ok := new(big.Int).SetString(strings.TrimSpace(req.Amount), 10)
		if !ok {
			h.fail(w, r, invalid("amount must be a base-10 integer"))
			return
		}
		amount = value
	}
	err = h.runtime.Execute(r.Context(), operation(kind, "mint"), func(s *core.Session) error {
		switch kind {
		case core.KindBadges:
			engine, err := s.Badges(ledgerRef(r))
			if err != nil {
				return err
			}
			count := uint64(1)
			if req.Count != nil {
				count = *req.Count
			}
			tokenID, err = engine.MintBadges(caller, to, count)
			return err
		case core.KindCollectibles:
			engine, err := s.Collectibles(ledgerRef(r))
			if err != nil {
				return err
			}
			tokenID, err = engine.Mint(caller, to)
			return err
		default:
			engine, err := s.Coins(ledgerRef(r))
			if err != nil {
				return err
			}
			return engine.Mint(caller, to, amount)
		}
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if kind == core.KindCoins {
		writeJSON(w, http.StatusOK, map[string]string{"to": crypto.FormatAddress(to), "amount": amount.String()})
		return
	}
	writeJSON(w, http.StatusOK, tokenView{ID: tokenID, Owner: crypto.FormatAddress(to)})
}

func (h *ledgerRoutes) transfer(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	from, err := parseAccount("from", req.From)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.runtime.Execute(r.Context(), "transfer", func(s *core.Session) error {
		d, err := s.Resolve(ledgerRef(r))
		if err != nil {
			return err
		}
		if d.Kind == core.KindBadges {
			engine, err := s.Badges(d.Name)
			if err != nil {
				return err
			}
			return engine.Transfer(caller, from, to, req.TokenID)
		}
		engine, err := s.Collectibles(d.Name)
		if err != nil {
			return err
		}
		return engine.Transfer(caller, from, to, req.TokenID)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenView{ID: req.TokenID, Owner: crypto.FormatAddress(to)})
}

func (h *ledgerRoutes) redeem(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	by := caller
	if strings.TrimSpace(req.By) != "" {
		if by, err = parseAccount("by", req.By); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	err = h.runtime.Execute(r.Context(), operation(core.KindBadges, "redeem"), func(s *core.Session) error {
		engine, err := s.Badges(ledgerRef(r))
		if err != nil {
			return err
		}
		return engine.Redeem(caller, by, req.TokenID)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokenId": req.TokenID, "redeemedBy": crypto.FormatAddress(by)})
}
