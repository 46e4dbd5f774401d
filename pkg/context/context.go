// Package context carries per-request values through the update
// pipeline without leaking transport types into it.
package context

import "context"

type ContextKey string

var (
	RequestIDKey  = ContextKey("X-Request-Id")
	MethodKey     = ContextKey("X-Method")
	RouteKey      = ContextKey("X-Route")
	RemoteIPKey   = ContextKey("X-Remote-Ip")
	AgencyIDKey   = ContextKey("X-Agency-Id")
	TrackingIDKey = ContextKey("X-Tracking-Id")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	value, ok := ctx.Value(MethodKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	value, ok := ctx.Value(RouteKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	value, ok := ctx.Value(RemoteIPKey).(string)
	if !ok {
		return ""
	}
	return value
}

// SetAgencyID records the acting agency of the request.
func SetAgencyID(ctx context.Context, agencyID int) context.Context {
	return context.WithValue(ctx, AgencyIDKey, agencyID)
}

func GetAgencyID(ctx context.Context) int {
	value, ok := ctx.Value(AgencyIDKey).(int)
	if !ok {
		return 0
	}
	return value
}

// SetTrackingID records the caller-supplied id that ties an update to
// the catalogers' workflow system.
func SetTrackingID(ctx context.Context, trackingID string) context.Context {
	return context.WithValue(ctx, TrackingIDKey, trackingID)
}

func GetTrackingID(ctx context.Context) string {
	value, ok := ctx.Value(TrackingIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
