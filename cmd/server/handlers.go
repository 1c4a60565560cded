package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	transbank "github.com/yourorg/transbank-api"
	"github.com/yourorg/transbank-api/internal/adapter/onepay"
	"github.com/yourorg/transbank-api/internal/adapter/webpay"
	"github.com/yourorg/transbank-api/internal/monitor"
	"github.com/yourorg/transbank-api/internal/tokenstore"
)

// Onepay reports this status on the callback when the buyer approved the cart.
const onepayPreAuthorized = "PRE_AUTHORIZED"

// server serves the return flow: it starts payments, remembers which type
// issued each token, and resolves the token Transbank posts back.
type server struct {
	tb       *transbank.Transbank
	tokens   tokenstore.Store
	tokenTTL time.Duration
	registry *prometheus.Registry
	logger   zerolog.Logger
}

func setupRouter(s *server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware("transbank-server"))

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	router.POST("/webpay/plus", s.createPlusHandler)
	router.POST("/webpay/return", s.webpayReturnHandler)
	router.POST("/webpay/final", webpayFinalHandler)
	router.POST("/onepay/cart", s.createCartHandler)
	router.GET("/onepay/return", s.onepayReturnHandler)
	router.POST("/onepay/return", s.onepayReturnHandler)
	router.POST("/onepay/nullify", s.nullifyHandler)
	return router
}

func (s *server) createPlusHandler(c *gin.Context) {
	var attrs transbank.Attributes
	if err := c.ShouldBindJSON(&attrs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	tx := s.tb.Webpay().MakeNormal(attrs)
	res, err := tx.GetResult(c.Request.Context())
	if err != nil {
		s.fail(c, "creating webpay plus transaction", err)
		return
	}
	if res.IsSuccess() {
		entry := tokenstore.Entry{Service: transbank.ServiceWebpay, Type: webpay.PlusNormal}
		if err := s.tokens.Put(c.Request.Context(), res.Token, entry, s.tokenTTL); err != nil {
			s.fail(c, "storing webpay token", err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  res.IsSuccess(),
		"token":    res.Token,
		"url":      res.Get("url"),
		"buyOrder": tx.Get("buyOrder"),
	})
}

func (s *server) webpayReturnHandler(c *gin.Context) {
	token := c.PostForm("token_ws")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token_ws is required"})
		return
	}
	entry, ok := s.take(c, token)
	if !ok {
		return
	}

	res, err := s.tb.Webpay().RetrieveAndConfirm(c.Request.Context(), entry.Type, transbank.Attributes{"token": token})
	if err != nil {
		s.fail(c, "confirming webpay transaction", err)
		return
	}
	body := gin.H{
		"success":           res.IsSuccess(),
		"type":              entry.Type,
		"authorizationCode": res.AuthorizationCode,
		"buyOrder":          res.Get("buyOrder"),
	}
	if res.ResponseCode != nil {
		body["responseCode"] = *res.ResponseCode
	}
	c.JSON(http.StatusOK, body)
}

// webpayFinalHandler is where Webpay sends the buyer after the voucher. An
// aborted payment arrives with TBK_TOKEN instead of token_ws.
func webpayFinalHandler(c *gin.Context) {
	if token := c.PostForm("TBK_TOKEN"); token != "" {
		c.JSON(http.StatusOK, gin.H{"status": "aborted", "token": token, "buyOrder": c.PostForm("TBK_ORDEN_COMPRA")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "finished", "token": c.PostForm("token_ws")})
}

func (s *server) createCartHandler(c *gin.Context) {
	var attrs transbank.Attributes
	if err := c.ShouldBindJSON(&attrs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	tx := s.tb.Onepay().MakeCart(attrs)
	res, err := tx.GetResult(c.Request.Context())
	if err != nil {
		s.fail(c, "creating onepay cart", err)
		return
	}
	eun := tx.GetString("externalUniqueNumber")
	if res.IsSuccess() {
		entry := tokenstore.Entry{Service: transbank.ServiceOnepay, Type: onepay.Cart, ExternalUniqueNumber: eun}
		if err := s.tokens.Put(c.Request.Context(), res.Token, entry, s.tokenTTL); err != nil {
			s.fail(c, "storing onepay occ", err)
			return
		}
	}

	body := gin.H{
		"success":              res.IsSuccess(),
		"occ":                  res.Token,
		"externalUniqueNumber": eun,
		"total":                tx.Get("total"),
		"description":          res.Description,
	}
	if out, ok := res.Raw.Object("result"); ok {
		body["ott"] = out["ott"]
		body["qrCodeAsBase64"] = out["qrCodeAsBase64"]
	}
	c.JSON(http.StatusOK, body)
}

func (s *server) onepayReturnHandler(c *gin.Context) {
	occ := param(c, "occ")
	if occ == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "occ is required"})
		return
	}
	entry, ok := s.take(c, occ)
	if !ok {
		return
	}
	if status := param(c, "status"); status != "" && status != onepayPreAuthorized {
		c.JSON(http.StatusOK, gin.H{"success": false, "occ": occ, "status": status})
		return
	}

	eun := param(c, "externalUniqueNumber")
	if eun == "" {
		eun = entry.ExternalUniqueNumber
	}
	res, err := s.tb.Onepay().GetCart(c.Request.Context(), occ, eun)
	if err != nil {
		s.fail(c, "confirming onepay cart", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":              res.IsSuccess(),
		"occ":                  occ,
		"externalUniqueNumber": eun,
		"authorizationCode":    res.AuthorizationCode,
		"description":          res.Description,
	})
}

func (s *server) nullifyHandler(c *gin.Context) {
	var attrs transbank.Attributes
	if err := c.ShouldBindJSON(&attrs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	res, err := s.tb.Onepay().CreateNullify(c.Request.Context(), attrs)
	if err != nil {
		s.fail(c, "nullifying onepay cart", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": res.IsSuccess(), "description": res.Description})
}

// take consumes a stored token, answering 404 when it is unknown.
func (s *server) take(c *gin.Context, token string) (tokenstore.Entry, bool) {
	entry, err := s.tokens.Take(c.Request.Context(), token)
	if errors.Is(err, tokenstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or expired token"})
		return entry, false
	}
	if err != nil {
		s.fail(c, "reading token", err)
		return entry, false
	}
	return entry, true
}

func (s *server) fail(c *gin.Context, action string, err error) {
	status := statusFor(err)
	s.logger.Error().Err(err).Int("status", status).Str("path", c.FullPath()).Msg(action)
	c.JSON(status, gin.H{"error": action + ": " + err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, monitor.ErrContract), errors.Is(err, transbank.ErrCartNegativeAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transbank.ErrServiceUnavailable), errors.Is(err, transbank.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, transbank.ErrInvalidTransaction):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// param reads key from the form body or the query string.
func param(c *gin.Context, key string) string {
	if v := c.PostForm(key); v != "" {
		return v
	}
	return c.Query(key)
}
