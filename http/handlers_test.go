package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/yourorg/ostrich-api/internal/auth"
	"github.com/yourorg/ostrich-api/internal/store"
	"github.com/yourorg/ostrich-api/stripe"
	"github.com/yourorg/ostrich-api/zillow"
)

// ── Fakes ──────────────────────────────────────────────────────────────────

type memStore struct {
	emailers map[int64]store.Emailer
	nextID   int64
	history  []store.ListingData
}

func newMemStore() *memStore { return &memStore{emailers: map[int64]store.Emailer{}, nextID: 1} }

func (m *memStore) CreateEmailer(_ context.Context, userID int64, in store.EmailerInput) (store.Emailer, error) {
	e := store.Emailer{ID: m.nextID, UserID: userID, EmailerInput: in, Active: true}
	m.emailers[e.ID] = e
	m.nextID++
	return e, nil
}

func (m *memStore) UpdateEmailer(_ context.Context, userID, id int64, in store.EmailerInput) (store.Emailer, error) {
	e, ok := m.emailers[id]
	if !ok || e.UserID != userID || !e.Active {
		return store.Emailer{}, store.ErrNotFound
	}
	e.EmailerInput = in
	m.emailers[id] = e
	return e, nil
}

func (m *memStore) DeactivateEmailer(_ context.Context, userID, id int64) error {
	e, ok := m.emailers[id]
	if !ok || e.UserID != userID || !e.Active {
		return store.ErrNotFound
	}
	e.Active = false
	m.emailers[id] = e
	return nil
}

func (m *memStore) GetEmailer(_ context.Context, userID, id int64) (store.Emailer, error) {
	e, ok := m.emailers[id]
	if !ok || e.UserID != userID || !e.Active {
		return store.Emailer{}, store.ErrNotFound
	}
	return e, nil
}

func (m *memStore) ListEmailersForUser(_ context.Context, userID int64) ([]store.Emailer, error) {
	var out []store.Emailer
	for id := int64(1); id < m.nextID; id++ {
		if e, ok := m.emailers[id]; ok && e.UserID == userID && e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveEmailers(ctx context.Context) ([]store.Emailer, error) {
	var out []store.Emailer
	for id := int64(1); id < m.nextID; id++ {
		if e := m.emailers[id]; e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListListingData(_ context.Context, userID, emailerID int64, _ int) ([]store.ListingData, error) {
	var out []store.ListingData
	for _, h := range m.history {
		if h.UserID == userID && h.EmailerID == emailerID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeSearcher struct {
	got  zillow.SearchParams
	hits []zillow.ListingCandidate
	err  error
}

func (f *fakeSearcher) SearchListings(_ context.Context, p zillow.SearchParams) ([]zillow.ListingCandidate, error) {
	f.got = p
	return f.hits, f.err
}

// as injects a resolved user, standing in for auth + UserMiddleware.
func as(u store.User, admin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithIdentity(r.Context(), auth.Identity{Subject: u.AuthenticationID, Admin: admin})
			ctx = context.WithValue(ctx, userKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const validEmailer = `{"search_param":"Easton, PA","email":"me@example.com","min_price":100000,"max_price":300000,
	"assumptions":{"insurance":60,"vacancy":5,"property_management":4,"capex":5,"repairs":5,"utilities":0,
	"down_payment":25,"closing_cost":4,"loan_interest":4,"loan_months":240,"additional_monthly_expenses":0}}`

// ── Emailers ───────────────────────────────────────────────────────────────

func TestEmailers_CRUD(t *testing.T) {
	st := newMemStore()
	r := chi.NewRouter()
	RegisterEmailers(r, EmailersDeps{Store: st, Searcher: &fakeSearcher{}, Authed: as(store.User{ID: 5}, false)})

	rec := do(t, r, http.MethodPost, "/emailers", validEmailer)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	var created store.Emailer
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.UserID != 5 || created.Assumptions.DownPayment != 25 {
		t.Errorf("created = %+v", created)
	}

	rec = do(t, r, http.MethodGet, "/emailers", "")
	var list []store.Emailer
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if rec.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list status = %d, len = %d", rec.Code, len(list))
	}

	upd := strings.Replace(validEmailer, "Easton, PA", "Bethlehem, PA", 1)
	rec = do(t, r, http.MethodPut, "/emailers/1", upd)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Bethlehem") {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body)
	}

	if rec = do(t, r, http.MethodDelete, "/emailers/1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec = do(t, r, http.MethodDelete, "/emailers/1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rec.Code)
	}
	if rec = do(t, r, http.MethodGet, "/emailers", ""); strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list body = %s", rec.Body)
	}
}

func TestEmailers_Validation(t *testing.T) {
	r := chi.NewRouter()
	RegisterEmailers(r, EmailersDeps{Store: newMemStore(), Authed: as(store.User{ID: 1}, false)})

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown field", `{"search_param":"x","email":"a@b.co","bogus":1}`, http.StatusBadRequest},
		{"missing email", strings.Replace(validEmailer, `"me@example.com"`, `""`, 1), http.StatusUnprocessableEntity},
		{"rate over 100", strings.Replace(validEmailer, `"vacancy":5`, `"vacancy":105`, 1), http.StatusUnprocessableEntity},
		{"min above max", strings.Replace(validEmailer, `"min_price":100000`, `"min_price":900000`, 1), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(t, r, http.MethodPost, "/emailers", tc.body); rec.Code != tc.want {
				t.Errorf("status = %d, want %d body=%s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestEmailers_RejectsUncomputableAssumptions(t *testing.T) {
	st := newMemStore()
	r := chi.NewRouter()
	RegisterEmailers(r, EmailersDeps{Store: st, Authed: as(store.User{ID: 3}, false)})

	if rec := do(t, r, http.MethodPost, "/emailers", validEmailer); rec.Code != http.StatusCreated {
		t.Fatalf("seed create status = %d body=%s", rec.Code, rec.Body)
	}

	noInvestment := strings.NewReplacer(`"down_payment":25`, `"down_payment":0`, `"closing_cost":4`, `"closing_cost":0`).Replace(validEmailer)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/emailers"},
		{http.MethodPut, "/emailers/1"},
	} {
		rec := do(t, r, tc.method, tc.path, noInvestment)
		if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "invalid_assumptions") {
			t.Errorf("%s %s status = %d body=%s", tc.method, tc.path, rec.Code, rec.Body)
		}
	}

	if len(st.emailers) != 1 || st.emailers[1].Assumptions.DownPayment != 25 {
		t.Errorf("stored emailers changed: %+v", st.emailers)
	}
}

func TestEmailers_OwnershipAndHistory(t *testing.T) {
	st := newMemStore()
	_, _ = st.CreateEmailer(context.Background(), 1, store.EmailerInput{SearchParam: "a", Email: "a@example.com"})
	st.history = []store.ListingData{{UserID: 1, EmailerID: 1, ZPID: "42"}}

	owner := chi.NewRouter()
	RegisterEmailers(owner, EmailersDeps{Store: st, Authed: as(store.User{ID: 1}, false)})
	rec := do(t, owner, http.MethodGet, "/emailers/1/listings", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"zpid":"42"`) {
		t.Fatalf("history status = %d body=%s", rec.Code, rec.Body)
	}

	stranger := chi.NewRouter()
	RegisterEmailers(stranger, EmailersDeps{Store: st, Authed: as(store.User{ID: 2}, false)})
	if rec := do(t, stranger, http.MethodGet, "/emailers/1/listings", ""); rec.Code != http.StatusNotFound {
		t.Errorf("stranger history status = %d", rec.Code)
	}
	if rec := do(t, stranger, http.MethodGet, "/emailers/all", ""); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin all status = %d", rec.Code)
	}

	admin := chi.NewRouter()
	RegisterEmailers(admin, EmailersDeps{Store: st, Authed: as(store.User{ID: 3}, true)})
	if rec := do(t, admin, http.MethodGet, "/emailers/all", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"search_param":"a"`) {
		t.Errorf("admin all status = %d body=%s", rec.Code, rec.Body)
	}
}

func TestTestSearchParam(t *testing.T) {
	s := &fakeSearcher{hits: []zillow.ListingCandidate{{ZPID: "1", Address: "1 Main St"}, {ZPID: "2"}}}
	r := chi.NewRouter()
	RegisterEmailers(r, EmailersDeps{Store: newMemStore(), Searcher: s})

	rec := do(t, r, http.MethodGet, "/emailers/test-search-param?search_param=Easton&min_price=1000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []string
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got) != 2 || got[0] != "1 Main St" || got[1] != "Missing" {
		t.Errorf("addresses = %v", got)
	}
	if s.got.Location != "Easton" || s.got.MinPrice == nil || *s.got.MinPrice != 1000 || s.got.MaxPrice != nil {
		t.Errorf("params = %+v", s.got)
	}

	if rec := do(t, r, http.MethodGet, "/emailers/test-search-param", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing param status = %d", rec.Code)
	}
	s.err = zillow.ErrQuotaExceeded
	if rec := do(t, r, http.MethodGet, "/emailers/test-search-param?search_param=x", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("quota status = %d", rec.Code)
	}
}

// ── Users ──────────────────────────────────────────────────────────────────

type resolver struct {
	err         error
	gotSub, got string
}

func (f *resolver) GetOrCreateUser(_ context.Context, sub, email string) (store.User, error) {
	f.gotSub, f.got = sub, email
	return store.User{ID: 9, AuthenticationID: sub, Email: email, BillingID: store.DefaultTier}, f.err
}

func TestUsersMe(t *testing.T) {
	res := &resolver{}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := auth.WithIdentity(req.Context(), auth.Identity{Subject: "sub-1", Email: "me@example.com"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Use(UserMiddleware(res))
	RegisterUsers(r)

	rec := do(t, r, http.MethodGet, "/users/me", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var u store.User
	_ = json.Unmarshal(rec.Body.Bytes(), &u)
	if u.ID != 9 || u.BillingID != "Tier 0" || res.gotSub != "sub-1" {
		t.Errorf("user = %+v", u)
	}

	res.err = errors.New("db down")
	if rec := do(t, r, http.MethodGet, "/users/me", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("store failure status = %d", rec.Code)
	}
}

func TestUserMiddleware_RequiresIdentity(t *testing.T) {
	h := UserMiddleware(&resolver{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler should not run")
	}))
	if rec := do(t, h, http.MethodGet, "/", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

// ── Stripe ─────────────────────────────────────────────────────────────────

type subs struct{ sub stripe.Subscription }

func (s subs) GetSubscription(context.Context, string) (stripe.Subscription, error) {
	return s.sub, nil
}

type billing struct {
	email, tier string
	err         error
}

func (b *billing) UpdateUserBilling(_ context.Context, email, tier string) (string, error) {
	b.email, b.tier = email, tier
	return "Tier 0", b.err
}

func webhookRequest(t *testing.T, h http.Handler, payload, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(payload))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: secret})
	req.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhook(t *testing.T) {
	sub := stripe.Subscription{ID: "sub_1", Status: "active", CustomerEmail: "payer@example.com", Product: "Tier 1"}

	b := &billing{}
	r := chi.NewRouter()
	RegisterStripe(r, StripeDeps{SignatureSecret: "whsec", Subscriptions: subs{sub}, Billing: b})

	payload := `{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","object":"subscription"}}}`
	rec := webhookRequest(t, r, payload, "whsec")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if b.email != "payer@example.com" || b.tier != "Tier 1" {
		t.Errorf("billing update = %+v", b)
	}

	if rec := webhookRequest(t, r, payload, "wrong"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad signature status = %d", rec.Code)
	}

	b.tier = ""
	other := `{"id":"evt_2","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`
	if rec := webhookRequest(t, r, other, "whsec"); rec.Code != http.StatusOK || b.tier != "" {
		t.Errorf("ignored event status = %d tier = %q", rec.Code, b.tier)
	}

	b.err = store.ErrNotFound
	if rec := webhookRequest(t, r, payload, "whsec"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d", rec.Code)
	}
}

func TestStripeWebhook_AcceptsLargeEvents(t *testing.T) {
	b := &billing{}
	r := chi.NewRouter()
	RegisterStripe(r, StripeDeps{SignatureSecret: "whsec", Subscriptions: subs{}, Billing: b})

	lines := strings.Repeat("x", 200<<10)
	payload := `{"id":"evt_3","type":"invoice.finalized","data":{"object":{"id":"in_2","object":"invoice","description":"` + lines + `"}}}`
	if rec := webhookRequest(t, r, payload, "whsec"); rec.Code != http.StatusOK {
		t.Errorf("large event status = %d", rec.Code)
	}

	tooBig := `{"id":"evt_4","type":"invoice.finalized","data":{"object":{"id":"in_3","object":"invoice","description":"` + strings.Repeat("x", 600<<10) + `"}}}`
	if rec := webhookRequest(t, r, tooBig, "whsec"); rec.Code != http.StatusBadRequest {
		t.Errorf("oversized event status = %d", rec.Code)
	}
}
