// Package history persists every rendered digest property as a listing_data
// row. Writes happen on a small worker pool so the email flow never waits on
// Postgres; when the queue is full the row is dropped and counted.
package history

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/yourorg/ostrich-api/internal/canon"
	"github.com/yourorg/ostrich-api/internal/digest"
	"github.com/yourorg/ostrich-api/internal/logger"
	"github.com/yourorg/ostrich-api/internal/metrics"
	"github.com/yourorg/ostrich-api/internal/store"
)

type Inserter interface {
	InsertListingData(ctx context.Context, in store.ListingData) (int64, error)
}

// Writer implements digest.Recorder.
type Writer struct {
	ch      chan store.ListingData
	inFly   sync.Map // emailer|zpid -> struct{}
	db      Inserter
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
}

func NewWriter(db Inserter, capacity, workers int) *Writer {
	if capacity <= 0 {
		capacity = 256
	}
	if workers <= 0 {
		workers = 2
	}
	w := &Writer{ch: make(chan store.ListingData, capacity), db: db, timeout: 15 * time.Second}
	w.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go w.worker()
	}
	return w
}

func inFlightKey(emailerID int64, zpid string) string {
	return strconv.FormatInt(emailerID, 10) + "|" + zpid
}

// Record queues one row. Duplicate rows already queued are ignored.
func (w *Writer) Record(s digest.Search, p digest.Property) {
	row := Row(s, p)
	key := inFlightKey(row.EmailerID, row.ZPID)
	if _, exists := w.inFly.LoadOrStore(key, struct{}{}); exists {
		return
	}
	select {
	case w.ch <- row:
	default:
		w.inFly.Delete(key)
		metrics.HistoryDropped.Inc()
		logger.Warn().Str("zpid", row.ZPID).Int64("emailer_id", row.EmailerID).Msg("history queue full, row dropped")
	}
}

// Close stops accepting rows and waits for queued writes to finish. Record
// must not be called after Close.
func (w *Writer) Close() {
	w.once.Do(func() { close(w.ch) })
	w.wg.Wait()
}

func (w *Writer) worker() {
	defer w.wg.Done()
	for row := range w.ch {
		w.write(row)
	}
}

func (w *Writer) write(row store.ListingData) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer func() {
		w.inFly.Delete(inFlightKey(row.EmailerID, row.ZPID))
		cancel()
	}()
	if _, err := w.db.InsertListingData(ctx, row); err != nil {
		logger.Error().Err(err).Str("zpid", row.ZPID).Int64("emailer_id", row.EmailerID).Msg("listing history insert failed")
	}
}

// Row converts a digest property into its history row.
func Row(s digest.Search, p digest.Property) store.ListingData {
	d := p.Detail
	row := store.ListingData{
		UserID:       s.UserID,
		EmailerID:    s.EmailerID,
		ZPID:         p.ZPID,
		Bedrooms:     d.Bedrooms,
		Bathrooms:    d.Bathrooms,
		Price:        d.Price,
		Taxes:        p.MonthlyTax,
		RentEstimate: d.RentZestimate,
		TimeOnZillow: d.TimeOnZillow,
		ImgSrc:       d.ImgSrc,
		URL:          d.URL,
		CashOnCash:   p.CashOnCash,
	}
	if a := d.Address; a != nil {
		row.StreetAddress, row.City, row.State, row.Zipcode = a.StreetAddress, a.City, a.State, a.Zipcode
	}
	if addr, ok := canon.FromListing(d.Address); ok {
		key := addr.Key()
		row.PropertyKey = &key
	}
	return row
}
