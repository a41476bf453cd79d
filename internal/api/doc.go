// Package api provides the rollout orchestration REST API.
//
// All endpoints under /api/v1 require a valid X-API-Key header. Rollouts
// are started asynchronously: POST /rollouts returns as soon as the
// workflow has been accepted, and clients follow progress through the
// rollout's state and history endpoints.
package api
