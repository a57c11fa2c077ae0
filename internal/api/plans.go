package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/core/supply"
	"github.com/matzehuels/nacplan/pkg/core/validate"
	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/pipeline"
	"github.com/matzehuels/nacplan/pkg/plan"
	"github.com/matzehuels/nacplan/pkg/store"
)

// PlanRequest is the body of POST /v1/plans.
type PlanRequest struct {
	Name    string        `json:"name,omitempty"`
	Devices []device.Load `json:"devices"`
	// Policy overrides fields of the server policy. Omitted fields keep the
	// server values.
	Policy           json.RawMessage        `json:"policy,omitempty"`
	AuxLoads         []supply.AuxLoad       `json:"aux_loads,omitempty"`
	DetectionDevices int                    `json:"detection_devices,omitempty"`
	VoltageDrops     []validate.VoltageDrop `json:"voltage_drops,omitempty"`
	Refresh          bool                   `json:"refresh,omitempty"`
}

// PlanResponse is returned by POST /v1/plans.
type PlanResponse struct {
	Plan   *plan.Plan `json:"plan"`
	Cached bool       `json:"cached"`
}

// ListResponse is returned by GET /v1/plans.
type ListResponse struct {
	Plans []plan.Summary `json:"plans"`
}

// options converts req into pipeline options on top of the server policy.
func (s *Server) options(req *PlanRequest) (pipeline.Options, error) {
	pol := s.policy.Clone()
	if len(req.Policy) > 0 {
		if err := json.Unmarshal(req.Policy, &pol); err != nil {
			return pipeline.Options{}, errors.Wrap(errors.ErrCodeInvalidPolicy, err, "decode policy")
		}
	}
	return pipeline.Options{
		Policy:           &pol,
		AuxLoads:         req.AuxLoads,
		DetectionDevices: req.DetectionDevices,
		VoltageDrops:     req.VoltageDrops,
		Name:             req.Name,
		Refresh:          req.Refresh,
		Logger:           s.logger,
	}, nil
}

func (s *Server) createPlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	opts, err := s.options(&req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	p, hit, err := s.runner.BuildWithCacheInfo(r.Context(), req.Devices, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	store.Prepare(p, s.now())
	if err := s.store.Save(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info("plan stored",
		"id", p.ID,
		"branches", len(p.Branches),
		"supplies", len(p.Supplies),
		"errors", p.Summary.Errors,
		"cached", hit)

	w.Header().Set("Location", "/v1/plans/"+p.ID)
	writeJSON(w, http.StatusCreated, PlanResponse{Plan: p, Cached: hit})
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	var opts store.ListOptions
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, r, errors.New(errors.ErrCodeInvalidInput, "limit must be a non-negative integer, got %q", v))
			return
		}
		opts.Limit = n
	}

	plans, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if plans == nil {
		plans = []plan.Summary{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Plans: plans})
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePlan(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) renderPlan(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if err := pipeline.ValidateFormat(format); err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	opts := pipeline.Options{
		Formats:  []string{format},
		Detailed: r.URL.Query().Get("detailed") == "true",
		Logger:   s.logger,
	}
	artifacts, err := s.runner.Render(r.Context(), p, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, ok := artifacts[format]
	if !ok {
		s.fail(w, r, fmt.Errorf("renderer produced no %s output", format))
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func contentType(format string) string {
	switch format {
	case pipeline.FormatJSON:
		return "application/json"
	case pipeline.FormatDOT:
		return "text/vnd.graphviz; charset=utf-8"
	case pipeline.FormatSVG:
		return "image/svg+xml"
	case pipeline.FormatPNG:
		return "image/png"
	case pipeline.FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}
