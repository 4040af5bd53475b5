package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/penny-labs/penny_api/model"
)

// SpendEvent is one normalized spend record, regardless of which ledger
// it came from.
type SpendEvent struct {
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Merchant    string    `json:"merchant"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// LedgerService reads spend history. The external purchases API is the
// preferred source; the local transactions table covers every failure
// mode, so a ledger outage never breaks quest generation.
type LedgerService struct {
	appContext.DefaultService

	httpClient *http.Client
	apiURL     string
	apiKey     string

	sqlSvc *PostgresService
}

const LEDGER_SVC = "ledger_svc"

func (svc LedgerService) Id() string {
	return LEDGER_SVC
}

func (svc *LedgerService) Configure(ctx *appContext.Context) error {
	svc.httpClient = &http.Client{
		Timeout: 10 * time.Second,
	}

	svc.apiURL = os.Getenv("NESSIE_API_URL")
	if svc.apiURL == "" {
		svc.apiURL = "http://api.nessieisreal.com"
	}
	svc.apiKey = os.Getenv("NESSIE_API_KEY")

	return svc.DefaultService.Configure(ctx)
}

func (svc *LedgerService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	return nil
}

// RecentSpend returns up to limit spend events for a user, newest first.
func (svc *LedgerService) RecentSpend(ctx context.Context, user *model.User, limit int) ([]SpendEvent, error) {
	events, err := svc.fetchPurchases(ctx, user.AccountID)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("External ledger unavailable, using local transactions")
		recordLedgerFallback()
		return svc.localSpend(user.ID, limit)
	}

	// Purchases arrive oldest first.
	reverse(events)
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// TodaySpend sums a user's spend for the current calendar day.
func (svc *LedgerService) TodaySpend(ctx context.Context, user *model.User, now time.Time) (float64, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	events, err := svc.fetchPurchases(ctx, user.AccountID)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("External ledger unavailable, using local transactions")
		recordLedgerFallback()

		txs, err := svc.sqlSvc.GetTransactionsBetween(user.ID, dayStart, dayEnd)
		if err != nil {
			return 0, err
		}

		var total float64
		for _, tx := range txs {
			total += tx.Amount
		}
		return total, nil
	}

	var total float64
	for _, e := range events {
		if !e.OccurredAt.Before(dayStart) && e.OccurredAt.Before(dayEnd) {
			total += e.Amount
		}
	}
	return total, nil
}

// CountTodayTransactions counts a user's spend events for the current day.
func (svc *LedgerService) CountTodayTransactions(ctx context.Context, user *model.User, now time.Time) (int, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	events, err := svc.fetchPurchases(ctx, user.AccountID)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("External ledger unavailable, using local transactions")
		recordLedgerFallback()

		txs, err := svc.sqlSvc.GetTransactionsBetween(user.ID, dayStart, dayEnd)
		if err != nil {
			return 0, err
		}
		return len(txs), nil
	}

	count := 0
	for _, e := range events {
		if !e.OccurredAt.Before(dayStart) && e.OccurredAt.Before(dayEnd) {
			count++
		}
	}
	return count, nil
}

func (svc *LedgerService) localSpend(userID string, limit int) ([]SpendEvent, error) {
	txs, err := svc.sqlSvc.GetRecentTransactions(userID, limit)
	if err != nil {
		return nil, err
	}

	events := make([]SpendEvent, 0, len(txs))
	for _, tx := range txs {
		events = append(events, SpendEvent{
			Amount:      tx.Amount,
			Description: tx.Description,
			Merchant:    tx.Merchant,
			OccurredAt:  tx.OccurredAt,
		})
	}
	return events, nil
}

type nessiePurchase struct {
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	Merchant     string  `json:"merchant_id"`
	PurchaseDate string  `json:"purchase_date"`
}

func (svc *LedgerService) fetchPurchases(ctx context.Context, accountID string) ([]SpendEvent, error) {
	if svc.apiKey == "" || accountID == "" {
		return nil, fmt.Errorf("ledger api not configured")
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/purchases?key=%s",
		svc.apiURL, url.PathEscape(accountID), url.QueryEscape(svc.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger API returned status %d", resp.StatusCode)
	}

	var purchases []nessiePurchase
	if err := json.NewDecoder(resp.Body).Decode(&purchases); err != nil {
		return nil, err
	}

	events := make([]SpendEvent, 0, len(purchases))
	for _, p := range purchases {
		occurredAt, err := time.Parse("2006-01-02", p.PurchaseDate)
		if err != nil {
			occurredAt, err = time.Parse(time.RFC3339, p.PurchaseDate)
			if err != nil {
				continue
			}
		}

		events = append(events, SpendEvent{
			Amount:      p.Amount,
			Description: p.Description,
			Merchant:    p.Merchant,
			OccurredAt:  occurredAt,
		})
	}
	return events, nil
}

func reverse(events []SpendEvent) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
