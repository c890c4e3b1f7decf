package routes

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aistrack/platform/pkg/ais"
	"github.com/aistrack/platform/pkg/common/logger"
	"github.com/aistrack/platform/pkg/enrichment"
	"github.com/aistrack/platform/pkg/gateway/middleware"
	"github.com/aistrack/platform/pkg/geo"
	"github.com/aistrack/platform/pkg/vessel"
	"github.com/gorilla/mux"
)

const defaultDetailWait = 20 * time.Second

// ShipsHandler serves the vessel query API.
type ShipsHandler struct {
	store  *vessel.Store
	engine *geo.Engine
	cache  *enrichment.Cache
	fetch  enrichment.FetchFunc

	// StaleAfter marks records whose last position is older than this.
	StaleAfter time.Duration
	// DetailWait bounds how long a detail request waits for enrichment.
	DetailWait time.Duration
	// RetryLimit throttles explicit enrichment retries, in requests per second.
	RetryLimit int

	now func() time.Time
}

type shipsResponse struct {
	Ships []vessel.RecordJSON `json:"ships"`
	Count int                 `json:"count"`
}

type center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type areaResponse struct {
	Ships    []vessel.RecordJSON `json:"ships"`
	Count    int                 `json:"count"`
	Center   center              `json:"center"`
	RadiusKm float64             `json:"radius_km"`
}

type enrichmentStatus struct {
	State     enrichment.FetchState `json:"state"`
	Error     string                `json:"error,omitempty"`
	FetchedAt *time.Time            `json:"fetched_at,omitempty"`
}

type detailResponse struct {
	MMSI        int64                `json:"mmsi"`
	Found       bool                 `json:"found"`
	AISData     *vessel.InfoJSON     `json:"ais_data,omitempty"`
	Position    *vessel.PositionJSON `json:"position,omitempty"`
	ScrapedData map[string]string    `json:"scraped_data,omitempty"`
	Enrichment  *enrichmentStatus    `json:"enrichment,omitempty"`
}

// NewShipsHandler wires the query API. cache and fetch may be nil, in which
// case detail responses carry AIS data only.
func NewShipsHandler(store *vessel.Store, engine *geo.Engine, cache *enrichment.Cache, fetch enrichment.FetchFunc) *ShipsHandler {
	return &ShipsHandler{
		store:      store,
		engine:     engine,
		cache:      cache,
		fetch:      fetch,
		StaleAfter: 10 * time.Minute,
		DetailWait: defaultDetailWait,
		RetryLimit: 2,
		now:        time.Now,
	}
}

func (h *ShipsHandler) Register(r *mux.Router) {
	r.HandleFunc("/ships", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/ships/area", h.handleArea).Methods(http.MethodGet)
	r.HandleFunc("/ships/count", h.handleCount).Methods(http.MethodGet)
	r.HandleFunc("/ships/{mmsi:[0-9-]+}", h.handleDetail).Methods(http.MethodGet)
	r.Handle("/ships/{mmsi:[0-9-]+}/enrichment/retry",
		middleware.RateLimit(h.RetryLimit, h.RetryLimit*5)(http.HandlerFunc(h.handleRetry)),
	).Methods(http.MethodPost)
}

func (h *ShipsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ships := h.render(h.store.SnapshotAll())
	writeJSON(w, http.StatusOK, shipsResponse{Ships: ships, Count: len(ships)})
}

func (h *ShipsHandler) handleArea(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := floatParam(q.Get("lat"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat: "+err.Error())
		return
	}
	lon, err := floatParam(q.Get("lon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "lon: "+err.Error())
		return
	}
	radius, err := floatParam(q.Get("radius_km"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "radius_km: "+err.Error())
		return
	}

	records, err := h.engine.QueryInRadius(lat, lon, radius)
	if err != nil {
		if geo.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Log.WithError(err).Error("area query failed")
		writeError(w, http.StatusInternalServerError, "area query failed")
		return
	}

	ships := h.render(records)
	writeJSON(w, http.StatusOK, areaResponse{
		Ships:    ships,
		Count:    len(ships),
		Center:   center{Lat: lat, Lon: lon},
		RadiusKm: radius,
	})
}

func (h *ShipsHandler) handleCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Count())
}

func (h *ShipsHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	mmsi, ok := h.mmsiParam(w, r)
	if !ok {
		return
	}
	h.writeDetail(w, r, mmsi, h.enrich)
}

func (h *ShipsHandler) handleRetry(w http.ResponseWriter, r *http.Request) {
	mmsi, ok := h.mmsiParam(w, r)
	if !ok {
		return
	}
	if h.cache == nil || h.fetch == nil {
		writeError(w, http.StatusNotImplemented, "enrichment disabled")
		return
	}
	h.writeDetail(w, r, mmsi, h.cache.Retry)
}

type enrichFunc func(ctx context.Context, mmsi ais.MMSI, fetch enrichment.FetchFunc) (enrichment.Record, error)

func (h *ShipsHandler) enrich(ctx context.Context, mmsi ais.MMSI, fetch enrichment.FetchFunc) (enrichment.Record, error) {
	return h.cache.GetOrFetch(ctx, mmsi, fetch)
}

func (h *ShipsHandler) writeDetail(w http.ResponseWriter, r *http.Request, mmsi ais.MMSI, enrich enrichFunc) {
	resp := detailResponse{MMSI: int64(mmsi)}
	if rec, ok := h.store.Get(mmsi); ok {
		resp.Found = true
		if rec.Static != nil {
			resp.AISData = vessel.NewInfoJSON(rec.Static)
		}
		if rec.Position != nil {
			resp.Position = vessel.NewPositionJSON(rec.Position)
		}
	}

	if h.cache != nil && h.fetch != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.DetailWait)
		defer cancel()

		rec, err := enrich(ctx, mmsi, h.fetch)
		if err != nil && rec.State == "" {
			if vessel.IsValidationError(err) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Log.WithError(err).WithField("mmsi", mmsi.String()).Error("enrichment lookup failed")
			writeError(w, http.StatusInternalServerError, "enrichment lookup failed")
			return
		}

		status := &enrichmentStatus{State: rec.State, Error: rec.Error}
		if !rec.FetchedAt.IsZero() {
			fetchedAt := rec.FetchedAt.UTC()
			status.FetchedAt = &fetchedAt
		}
		resp.Enrichment = status
		if rec.Found() {
			resp.Found = true
			resp.ScrapedData = rec.Payload
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ShipsHandler) mmsiParam(w http.ResponseWriter, r *http.Request) (ais.MMSI, bool) {
	mmsi, err := ais.ParseMMSI(mux.Vars(r)["mmsi"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid mmsi")
		return 0, false
	}
	if err := vessel.ValidateMMSI(mmsi); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return mmsi, true
}

func (h *ShipsHandler) render(records []vessel.Record) []vessel.RecordJSON {
	now := h.now()
	out := make([]vessel.RecordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, vessel.NewRecordJSON(rec, now, h.StaleAfter))
	}
	return out
}

func floatParam(s string) (float64, error) {
	if s == "" {
		return 0, errMissing
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errNotNumber
	}
	return v, nil
}
