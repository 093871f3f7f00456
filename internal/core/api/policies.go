package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solatis/farekeeper/internal/core/store"
	"github.com/solatis/farekeeper/internal/types"
)

// ListPolicies returns the saved collection as a bare array.
// A corrupt store answers 500 with an empty policies list alongside the
// error so clients can render an empty-but-flagged state.
func (s *Service) ListPolicies(c *gin.Context) {
	policies, err := s.loadPolicies(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to load policies", "error", err, "request_id", requestID(c))
		if errors.Is(err, types.ErrCorruptStore) && statusFor(err) == http.StatusInternalServerError {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     err.Error(),
				"policies":  []types.SavedPolicy{},
				"requestId": requestID(c),
			})
			return
		}
		writeError(c, err)
		return
	}

	if policies == nil {
		policies = types.PolicyCollection{}
	}

	encoded, err := store.EncodeCollection(policies)
	if err != nil {
		writeError(c, err)
		return
	}
	etag := computeETag(encoded)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.JSON(http.StatusOK, policies)
}

// SavePolicies replaces the saved collection. The body is either a bare
// array or {"policies": [...]}.
func (s *Service) SavePolicies(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, fmt.Errorf("%w: read body: %v", types.ErrInvalidInput, err))
		return
	}

	policies, err := store.DecodeSubmission(body)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := s.savePolicies(c.Request.Context(), policies); err != nil {
		s.logger.Error("failed to save policies", "error", err, "request_id", requestID(c))
		writeError(c, err)
		return
	}

	s.logger.Info("policies replaced", "count", len(policies), "request_id", requestID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
