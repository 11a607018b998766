package dynamic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"catalog-service/internal/model"

	"go.uber.org/zap"
)

const (
	defaultBaseDays  = 3
	localStockDays   = 1
	defaultCutoff    = 15 * time.Hour
	shortDateMaxDays = 5
)

var defaultWorkingDays = []int{1, 2, 3, 4, 5}

// calendar is the parsed delivery configuration of a city
type calendar struct {
	baseDays    int
	cutoff      time.Duration
	workingDays map[time.Weekday]bool
}

// DeliveryEstimator turns stock locality into a delivery date over a city's
// working-day calendar.
type DeliveryEstimator struct {
	store  Store
	stock  *StockAggregator
	now    func() time.Time
	loc    *time.Location
	logger *zap.Logger
}

// NewDeliveryEstimator creates an estimator. Cutoff times are evaluated in loc.
func NewDeliveryEstimator(store Store, stock *StockAggregator, now func() time.Time, loc *time.Location, logger *zap.Logger) *DeliveryEstimator {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.L()
	}
	return &DeliveryEstimator{store: store, stock: stock, now: now, loc: loc, logger: logger}
}

// Resolve loads the city and stock of productID and estimates delivery
func (e *DeliveryEstimator) Resolve(ctx context.Context, productID, cityID int64) (DeliveryResolution, error) {
	city, err := e.store.City(ctx, cityID)
	if err != nil {
		return DeliveryResolution{}, err
	}
	stock, err := e.stock.Resolve(ctx, productID, cityID)
	if err != nil {
		return DeliveryResolution{}, err
	}
	return e.Estimate(city, stock), nil
}

// Estimate computes the delivery of a product with the given stock to city
func (e *DeliveryEstimator) Estimate(city *model.City, stock StockResolution) DeliveryResolution {
	cal := e.parseCalendar(city)

	var (
		lead int
		kind string
	)
	switch {
	case stock.Quantity > 0:
		lead, kind = localStockDays, DeliveryTypeStock
	case stock.Total > 0:
		lead, kind = cal.baseDays, DeliveryTypeOrder
	default:
		return DeliveryResolution{Text: deliveryTextRequest, Type: DeliveryTypeRequest}
	}

	now := e.now().In(e.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	date := deliveryDate(now, today, lead, cal)

	days := cal.workingDaysBetween(today, date)
	formatted := date.Format(dateLayout)
	return DeliveryResolution{
		Date: &formatted,
		Text: deliveryText(today, date, days),
		Type: kind,
		Days: &days,
	}
}

// deliveryDate counts lead working days forward from today. An order placed
// after the cutoff starts counting one calendar day later.
func deliveryDate(now, today time.Time, lead int, cal calendar) time.Time {
	date := today
	if now.After(cal.cutoffOn(today)) {
		date = date.AddDate(0, 0, 1)
	}
	for added := 0; added < lead; {
		date = date.AddDate(0, 0, 1)
		if cal.workingDays[date.Weekday()] {
			added++
		}
	}
	return date
}

// cutoffOn returns the cutoff as wall-clock time on day
func (c calendar) cutoffOn(day time.Time) time.Time {
	h := int(c.cutoff / time.Hour)
	m := int(c.cutoff % time.Hour / time.Minute)
	s := int(c.cutoff % time.Minute / time.Second)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, day.Location())
}

// workingDaysBetween counts working days in [from, to)
func (c calendar) workingDaysBetween(from, to time.Time) int {
	days := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if c.workingDays[d.Weekday()] {
			days++
		}
	}
	return days
}

func deliveryText(today, date time.Time, days int) string {
	switch {
	case sameDay(date, today):
		return "Today"
	case sameDay(date, today.AddDate(0, 0, 1)):
		return "Tomorrow"
	case days <= shortDateMaxDays:
		return date.Format("02.01 (Mon)")
	default:
		return date.Format("02.01.2006")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// parseCalendar reads the city configuration, falling back to defaults for
// missing or unreadable values
func (e *DeliveryEstimator) parseCalendar(city *model.City) calendar {
	cal := calendar{baseDays: defaultBaseDays, cutoff: defaultCutoff}
	days := defaultWorkingDays
	if city == nil {
		cal.workingDays = weekdaySet(days)
		return cal
	}

	if city.DeliveryBaseDays > 0 {
		cal.baseDays = city.DeliveryBaseDays
	}
	if city.CutoffTime != "" {
		cutoff, err := parseTimeOfDay(city.CutoffTime)
		if err != nil {
			e.logger.Warn("Invalid city cutoff time, using default",
				zap.Int64("city_id", city.ID),
				zap.String("cutoff_time", city.CutoffTime),
				zap.Error(err))
		} else {
			cal.cutoff = cutoff
		}
	}
	if len(city.WorkingDays) > 0 {
		var configured []int
		if err := json.Unmarshal(city.WorkingDays, &configured); err != nil {
			e.logger.Warn("Invalid city working days, using default",
				zap.Int64("city_id", city.ID),
				zap.Error(err))
		} else if set := weekdaySet(configured); len(set) > 0 {
			cal.workingDays = set
		}
	}
	if cal.workingDays == nil {
		cal.workingDays = weekdaySet(days)
	}
	return cal
}

// weekdaySet converts ISO weekdays (1 = Monday .. 7 = Sunday), ignoring out of range values
func weekdaySet(isoDays []int) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(isoDays))
	for _, d := range isoDays {
		if d < 1 || d > 7 {
			continue
		}
		set[time.Weekday(d%7)] = true
	}
	return set
}

// parseTimeOfDay parses "HH:MM" or "HH:MM:SS" into an offset from midnight
func parseTimeOfDay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}
