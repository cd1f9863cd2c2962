package restapi

import (
	"bufio"
	"bytes"
	"context"
	stdjson "encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"sift_client/internal/app/port"
	"sift_client/internal/app/service"
	"sift_client/internal/domain/entity"
	"sift_client/internal/pkg/logger"
	"sift_client/internal/pkg/metrics"
	"sift_client/internal/pkg/notify"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accountAddr = "0xAAAA000000000000000000000000000000000001"
	txHash      = "0x5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubChainState struct {
	status   entity.ChainStatusSnapshot
	accounts []entity.AccountSnapshot
}

func (s *stubChainState) Status() entity.ChainStatusSnapshot { return s.status }

func (s *stubChainState) Accounts() []entity.AccountSnapshot { return s.accounts }

func (s *stubChainState) Account(address string) (entity.AccountSnapshot, bool) {
	for _, a := range s.accounts {
		if strings.EqualFold(a.Address, address) {
			return a, true
		}
	}
	return entity.AccountSnapshot{}, false
}

type stubQueue struct {
	mu  sync.Mutex
	txs map[string]*entity.EnqueuedTransaction
}

func newStubQueue() *stubQueue {
	return &stubQueue{txs: make(map[string]*entity.EnqueuedTransaction)}
}

func (q *stubQueue) Enqueue(hash string) *entity.EnqueuedTransaction {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := strings.ToLower(hash)
	if tx, ok := q.txs[key]; ok {
		return tx
	}
	tx := entity.NewEnqueuedTransaction(hash, time.Now(), nil)
	q.txs[key] = tx
	return tx
}

func (q *stubQueue) Get(hash string) (*entity.EnqueuedTransaction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tx, ok := q.txs[strings.ToLower(hash)]
	return tx, ok
}

func (q *stubQueue) Forget(hash string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := strings.ToLower(hash)
	tx, ok := q.txs[key]
	if !ok {
		return service.ErrUnknownTransaction
	}
	if !tx.Completed() {
		return service.ErrTransactionPending
	}
	delete(q.txs, key)
	return nil
}

func (q *stubQueue) Transactions() []*entity.EnqueuedTransaction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*entity.EnqueuedTransaction, 0, len(q.txs))
	for _, tx := range q.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionHash() < out[j].TransactionHash() })
	return out
}

type stubPurchases struct {
	result       entity.PurchaseResult
	request      entity.PurchaseRequest
	confirmation entity.Confirmation
	maximum      uint64
}

func (s *stubPurchases) EstimateGasCost(context.Context, string, string, *big.Int) (entity.GasEstimate, error) {
	return entity.NewGasEstimate(big.NewInt(1), 21000), nil
}

func (s *stubPurchases) Purchase(ctx context.Context, req entity.PurchaseRequest, c port.Confirmer) entity.PurchaseResult {
	s.request = req
	s.confirmation, _ = c.Confirm(ctx, entity.ConfirmationRequest{From: req.Address})
	return s.result
}

func (s *stubPurchases) MaximumPurchase(address string) (uint64, bool) {
	if !strings.EqualFold(address, accountAddr) {
		return 0, false
	}
	return s.maximum, true
}

type apiFixture struct {
	router    *gin.Engine
	chain     *stubChainState
	queue     *stubQueue
	purchases *stubPurchases
	notifier  *notify.Notifier
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		chain: &stubChainState{
			status: entity.ChainStatusSnapshot{
				Phase:                entity.ContractPhaseIco,
				BlockNumber:          42,
				LastChecksSuccessful: true,
				TotalSupply:          big.NewInt(1000),
			},
			accounts: []entity.AccountSnapshot{{
				Address:      accountAddr,
				BalanceWei:   decimal.New(25, 17),
				Balance:      decimal.NewFromFloat(2.5),
				BalanceUnit:  "ETH",
				TokenBalance: big.NewInt(250),
			}},
		},
		queue:     newStubQueue(),
		purchases: &stubPurchases{maximum: 249},
		notifier:  notify.NewNotifier(),
	}
	reg := prometheus.NewRegistry()
	metrics.NewMetrics(reg, "sift")
	h := NewHandler(f.chain, f.queue, f.purchases, f.notifier, logger.NewSlogAdapter(nil))
	f.router = SetupRouter(h, reg, logger.NewSlogAdapter(nil))
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, stdjson.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestGetStatus(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ico", data["phase"])
	assert.Equal(t, float64(42), data["blockNumber"])
	assert.Equal(t, "Node checks are passing.", body["status_message"])

	f.chain.status.ContractError = "SIFT contract expected 500 but got 501"
	_, body = f.do(t, http.MethodGet, "/api/v1/status", "")
	assert.Contains(t, body["status_message"], "mismatch")
}

func TestGetAccounts(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/v1/accounts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := body["data"].(map[string]any)["accounts"].([]any)
	require.Len(t, accounts, 1)
	first := accounts[0].(map[string]any)
	assert.Equal(t, accountAddr, first["address"])
	assert.Equal(t, "ETH", first["balanceUnit"])
}

func TestGetMaximumPurchase(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/v1/accounts/"+accountAddr+"/maximum-purchase", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(249), body["data"].(map[string]any)["maximumPurchase"])

	rec, _ = f.do(t, http.MethodGet, "/api/v1/accounts/0xBBBB000000000000000000000000000000000002/maximum-purchase", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/accounts/nope/maximum-purchase", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchase_Success(t *testing.T) {
	f := newAPIFixture(t)
	tx := f.queue.Enqueue(txHash)
	f.purchases.result = entity.PurchaseSucceeded(tx)

	rec, body := f.do(t, http.MethodPost, "/api/v1/purchases",
		`{"address":"`+accountAddr+`","quantity":10,"password":"pw","gasMultiplier":3}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, entity.PurchaseRequest{Address: accountAddr, Quantity: 10}, f.purchases.request)
	assert.Equal(t, entity.Confirmation{Password: "pw", GasMultiplier: 3}, f.purchases.confirmation)

	data := body["data"].(map[string]any)
	assert.Equal(t, txHash, data["result"].(map[string]any)["transactionHash"])
	assert.Equal(t, "pending", data["transaction"].(map[string]any)["state"])
}

func TestPurchase_Failures(t *testing.T) {
	tests := []struct {
		name   string
		result entity.PurchaseResult
		status int
	}{
		{"unknown account", entity.PurchaseFailed(entity.FailureUnknownAccount, ""), http.StatusNotFound},
		{"insufficient funds", entity.PurchaseFailed(entity.FailureInsufficientFunds, ""), http.StatusUnprocessableEntity},
		{"cancelled", entity.PurchaseFailed(entity.FailureUserCancelled, ""), http.StatusOK},
		{"bad password", entity.PurchaseFailed(entity.FailurePasswordInvalid, ""), http.StatusForbidden},
		{"no personal api", entity.PurchaseFailed(entity.FailureMissingRPCPersonal, ""), http.StatusNotImplemented},
		{"unknown", entity.PurchaseFailed(entity.FailureUnknown, "boom"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			f.purchases.result = tt.result

			rec, body := f.do(t, http.MethodPost, "/api/v1/purchases",
				`{"address":"`+accountAddr+`","quantity":1,"cancel":true}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.True(t, f.purchases.confirmation.Cancelled)
			result := body["data"].(map[string]any)["result"].(map[string]any)
			assert.Equal(t, tt.result.FailureType.String(), result["failureType"])
		})
	}
}

func TestPurchase_RejectsBadRequests(t *testing.T) {
	f := newAPIFixture(t)

	for _, body := range []string{
		`not json`,
		`{"quantity":1}`,
		`{"address":"0x12","quantity":1}`,
		`{"address":"` + accountAddr + `","quantity":0}`,
	} {
		rec, _ := f.do(t, http.MethodPost, "/api/v1/purchases", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, f.purchases.request.Address, "service must not be called")
}

func TestTransactions_Lifecycle(t *testing.T) {
	f := newAPIFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/v1/transactions", `{"transactionHash":"`+txHash+`"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "pending", body["data"].(map[string]any)["state"])

	rec, _ = f.do(t, http.MethodGet, "/api/v1/transactions/"+txHash, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/v1/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"].(map[string]any)["transactions"], 1)

	rec, _ = f.do(t, http.MethodDelete, "/api/v1/transactions/"+txHash, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	tx, _ := f.queue.Get(txHash)
	tx.MarkSuccess(&types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(7)})

	rec, body = f.do(t, http.MethodGet, "/api/v1/transactions/"+txHash, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), body["data"].(map[string]any)["blockNumber"])

	rec, _ = f.do(t, http.MethodDelete, "/api/v1/transactions/"+txHash, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = f.do(t, http.MethodDelete, "/api/v1/transactions/"+txHash, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = f.do(t, http.MethodGet, "/api/v1/transactions/"+txHash, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnqueueTransaction_InvalidHash(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/transactions", `{"transactionHash":"0x1234"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = f.do(t, http.MethodPost, "/api/v1/transactions", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.queue.Transactions())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sift_")
}

func TestEvents_StreamsChanges(t *testing.T) {
	f := newAPIFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// keep publishing until the handler has subscribed and forwarded one change
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				f.notifier.Notify("status", "", "BlockNumber")
			}
		}
	}()

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed early")
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var change notify.Change
			require.NoError(t, stdjson.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &change))
			assert.Equal(t, notify.Change{Source: "status", Property: "BlockNumber"}, change)
			return
		case <-deadline:
			t.Fatal("no change event received")
		}
	}
}

func TestSwaggerUI(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/swagger/index.html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")

	rec, _ = f.do(t, http.MethodGet, "/docs/swagger.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/accounts/{address}/maximum-purchase")
	assert.Contains(t, rec.Body.String(), "/events")
}
