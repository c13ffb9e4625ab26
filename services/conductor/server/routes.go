// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianConductor/services/conductor/schedule"
)

// SetupRoutes registers the run control surface on the router.
func SetupRoutes(router *gin.Engine, reg *schedule.Registry, logger *slog.Logger) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/reset", Reset(reg))

		runs := v1.Group("/runs")
		{
			runs.POST("", StartRun(reg, logger))
			runs.GET("", ListRuns(reg))
			runs.GET("/:runId", GetRun(reg))
			runs.GET("/:runId/events", StreamRunEvents(reg, logger))
			runs.POST("/:runId/cancel", CancelRun(reg))
		}
	}
}

// New builds a gin engine with the run control surface mounted.
//
// # Description
//
// Uses gin release mode with recovery only; request logging goes
// through slog rather than gin's default writer.
func New(reg *schedule.Registry, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	SetupRoutes(router, reg, logger)
	return router
}
