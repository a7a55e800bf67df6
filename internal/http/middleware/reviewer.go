package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const reviewerKey = "reviewer_id"

// ReviewerIdentity extracts the reviewer from the X-Reviewer-Id header, set
// by the session layer upstream. Routes that require a reviewer call
// ReviewerID and reject requests without one; read-only routes ignore it.
func ReviewerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Reviewer-Id")
		if raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				c.Set(reviewerKey, id)
			}
		}
		c.Next()
	}
}

// ReviewerID returns the authenticated reviewer for this request, if any.
func ReviewerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(reviewerKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
