// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package harbor

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all Harbor routes with the router.
//
// Description:
//
//	Registers all /v1/harbor/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Endpoints:
//
//	GET  /v1/harbor/health - Health check
//	GET  /v1/harbor/projects - List projects in resolution order
//	POST /v1/harbor/configs - Replace the project configuration set
//	GET  /v1/harbor/resolve - Resolve file ownership
//
// Example:
//
//	service := harbor.NewService(harbor.DefaultServiceConfig())
//	handlers := harbor.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	harbor.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	hb := rg.Group("/harbor")
	{
		hb.GET("/health", handlers.HandleHealth)
		hb.GET("/projects", handlers.HandleProjects)
		hb.POST("/configs", handlers.HandleUpdateConfigs)
		hb.GET("/resolve", handlers.HandleResolve)
	}
}
