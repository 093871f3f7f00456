package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solatis/farekeeper/internal/fare"
	"github.com/solatis/farekeeper/internal/types"
)

// policyRef names a policy either inline or by saved name. Inline wins.
type policyRef struct {
	Policy *types.FarePolicy `json:"policy"`
	Name   string            `json:"name"`
}

type fareRequest struct {
	policyRef
	Distance *float64 `json:"distance"`
}

type fareResponse struct {
	Distance float64 `json:"distance"`
	Fare     float64 `json:"fare"`
	PeakFare float64 `json:"peakFare"`
}

type seriesRequest struct {
	policyRef
	MaxDistance   *float64 `json:"maxDistance"`
	StartDistance *float64 `json:"startDistance"`
	Step          *float64 `json:"step"`
}

type compareRequest struct {
	A         *types.FarePolicy `json:"a"`
	B         *types.FarePolicy `json:"b"`
	NameA     string            `json:"nameA"`
	NameB     string            `json:"nameB"`
	Distances []float64         `json:"distances"`
}

type compareResponse struct {
	Rows        []fare.ComparisonRow   `json:"rows"`
	Differences []fare.FieldDifference `json:"differences"`
}

// resolve returns the inline policy or looks the name up in the store.
func (s *Service) resolve(ctx context.Context, ref policyRef, label string) (types.FarePolicy, error) {
	if ref.Policy != nil {
		return *ref.Policy, nil
	}
	if ref.Name != "" {
		return s.lookupPolicy(ctx, ref.Name)
	}
	return types.FarePolicy{}, fmt.Errorf("%w: %s requires a policy or a saved policy name", types.ErrInvalidInput, label)
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		writeError(c, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return false
	}
	return true
}

// Fare computes the fare and peak fare for one distance.
func (s *Service) Fare(c *gin.Context) {
	var req fareRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Distance == nil {
		writeError(c, fmt.Errorf("%w: distance is required", types.ErrInvalidInput))
		return
	}

	policy, err := s.resolve(c.Request.Context(), req.policyRef, "fare")
	if err != nil {
		writeError(c, err)
		return
	}

	total, err := s.engine.Fare(*req.Distance, policy)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, fareResponse{
		Distance: *req.Distance,
		Fare:     fare.Round2(total),
		PeakFare: fare.Round2(fare.PeakFare(total, policy)),
	})
}

// Series tabulates the fare over a distance range.
// maxDistance defaults to series.default_max.
func (s *Service) Series(c *gin.Context) {
	var req seriesRequest
	if !bindJSON(c, &req) {
		return
	}

	policy, err := s.resolve(c.Request.Context(), req.policyRef, "series")
	if err != nil {
		writeError(c, err)
		return
	}

	maxDistance := s.cfg.Series.DefaultMax
	if req.MaxDistance != nil {
		maxDistance = *req.MaxDistance
	}

	var opts []fare.SeriesOption
	if req.StartDistance != nil {
		opts = append(opts, fare.WithStart(*req.StartDistance))
	}
	if req.Step != nil {
		opts = append(opts, fare.WithStep(*req.Step))
	}

	samples, err := s.engine.Series(policy, maxDistance, opts...)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, samples)
}

// Compare tabulates two policies side by side and lists differing fields.
// Distances default to 1..50.
func (s *Service) Compare(c *gin.Context) {
	var req compareRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	a, err := s.resolve(ctx, policyRef{Policy: req.A, Name: req.NameA}, "policy a")
	if err != nil {
		writeError(c, err)
		return
	}
	b, err := s.resolve(ctx, policyRef{Policy: req.B, Name: req.NameB}, "policy b")
	if err != nil {
		writeError(c, err)
		return
	}

	distances := req.Distances
	if len(distances) == 0 {
		distances = fare.DefaultCompareDistances()
	}

	rows, err := s.engine.Compare(a, b, distances)
	if err != nil {
		writeError(c, err)
		return
	}

	differences := fare.Diff(a, b)
	if differences == nil {
		differences = []fare.FieldDifference{}
	}

	c.JSON(http.StatusOK, compareResponse{Rows: rows, Differences: differences})
}

// Health reports liveness.
func (s *Service) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
