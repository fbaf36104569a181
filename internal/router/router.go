package router

import (
	"net/http"

	"github.com/blues/crowdledger/internal/handler"
	"github.com/blues/crowdledger/internal/logic"
	"github.com/gin-gonic/gin"
)

func Setup(campaignLogic *logic.CampaignLogic, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()

	// 中间件
	r.Use(requestIDMiddleware())
	r.Use(accessLogMiddleware())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   "crowdledger",
			"campaigns": len(campaignLogic.ListCampaigns()),
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		campaignHandler := handler.NewCampaignHandler(campaignLogic)
		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.GET("", campaignHandler.GetCampaigns)
			campaigns.GET("/:address", campaignHandler.GetCampaign)
			campaigns.GET("/:address/comments", campaignHandler.GetComments)
			campaigns.POST("/:address/comments", campaignHandler.AddComment)
			campaigns.POST("/:address/contributions", campaignHandler.Contribute)
			campaigns.GET("/:address/contributions/:contributor", campaignHandler.GetContribution)
			campaigns.POST("/:address/withdraw", campaignHandler.Withdraw)
			campaigns.POST("/:address/refund", campaignHandler.Refund)
			campaigns.POST("/:address/end", campaignHandler.EndCampaign)
			campaigns.GET("/:address/events", campaignHandler.GetEvents)
		}

		v1.GET("/rewards/:account", campaignHandler.GetRewardBalance)
	}

	return r
}
