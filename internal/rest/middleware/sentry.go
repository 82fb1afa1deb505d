package middleware

import (
	"time"

	"github.com/clinicdesk/clinicdesk/internal/sentry"
	"github.com/clinicdesk/clinicdesk/internal/types"
	sentrygo "github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// SentryMiddleware captures panics and tags the request scope with its request id
func SentryMiddleware(svc *sentry.Service) gin.HandlerFunc {
	if !svc.Enabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// SentryTagsMiddleware must run after SentryMiddleware and RequestIDMiddleware
func SentryTagsMiddleware(c *gin.Context) {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.ConfigureScope(func(scope *sentrygo.Scope) {
			scope.SetTag("request_id", types.GetRequestID(c.Request.Context()))
			scope.SetUser(sentrygo.User{ID: types.GetUserID(c.Request.Context())})
		})
	}
	c.Next()
}
