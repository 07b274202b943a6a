package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/bot"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/fleet"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
)

// botView 控制接口透出的账号状态
type botView struct {
	Username      string     `json:"username"`
	SteamID       string     `json:"steam_id,omitempty"`
	DisplayName   string     `json:"display_name,omitempty"`
	CanonicalName string     `json:"canonical_name"`
	LoggedOn      bool       `json:"logged_on"`
	Connecting    bool       `json:"connecting"`
	Disabled      bool       `json:"disabled"`
	OTPPending    bool       `json:"otp_pending"`
	LoginAt       *time.Time `json:"login_at,omitempty"`
	WebLoginAt    *time.Time `json:"web_login_at,omitempty"`
	PlayedApp     uint32     `json:"played_app,omitempty"`
}

func viewOf(b *bot.Bot) botView {
	v := botView{
		Username:      b.Username(),
		SteamID:       b.SteamID(),
		DisplayName:   b.DisplayName(),
		CanonicalName: b.CanonicalName(),
		LoggedOn:      b.LoggedOn(),
		Connecting:    b.Connecting(),
		Disabled:      b.Disabled(),
		OTPPending:    b.OTPPending(),
	}
	if at := b.LoginAt(); !at.IsZero() {
		v.LoginAt = &at
	}
	if at := b.WebLoginAt(); !at.IsZero() {
		v.WebLoginAt = &at
	}
	v.PlayedApp, _ = b.PlayedApp()
	return v
}

// botFromParam 按路径参数定位账号，all=true 时包含已停用的
func (s *Server) botFromParam(c *gin.Context) *bot.Bot {
	includeDisabled := c.Query("all") == "true"
	b := s.registry.Get(c.Param("id"), includeDisabled)
	if b == nil {
		abortError(c, fleet.ErrBotNotFound)
		return nil
	}
	return b
}

// appFromParam 解析路径中的应用 ID
func (s *Server) appFromParam(c *gin.Context) (uint32, bool) {
	raw := c.Param("app")
	app, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || app == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Error:   http.StatusText(http.StatusBadRequest),
			Message: "invalid app id: " + raw,
		})
		return 0, false
	}
	return uint32(app), true
}

func (s *Server) getStatus(c *gin.Context) {
	bots := s.registry.GetAll(false, true)
	views := make([]botView, 0, len(bots))
	for _, b := range bots {
		views = append(views, viewOf(b))
	}

	c.JSON(http.StatusOK, gin.H{
		"bots":                  views,
		"online":                len(s.registry.GetAll(true, false)),
		"pending_reconnects":    s.registry.PendingReconnects(),
		"pending_confirmations": s.registry.PendingConfirmations(),
	})
}

func (s *Server) listBots(c *gin.Context) {
	onlineOnly := c.Query("online") == "true"
	includeDisabled := c.Query("all") == "true"

	bots := s.registry.GetAll(onlineOnly, includeDisabled)
	views := make([]botView, 0, len(bots))
	for _, b := range bots {
		views = append(views, viewOf(b))
	}
	c.JSON(http.StatusOK, gin.H{"bots": views})
}

type addBotRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) addBot(c *gin.Context) {
	var req addBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	b, err := s.registry.Add(req.Username, req.Password)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(b))
}

func (s *Server) getBot(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}
	c.JSON(http.StatusOK, viewOf(b))
}

func (s *Server) removeBot(c *gin.Context) {
	if err := s.registry.Remove(c.Param("id")); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) reconnectBot(c *gin.Context) {
	if err := s.registry.PushPendingReconnect(c.Param("id")); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

func (s *Server) queueConfirmations(c *gin.Context) {
	if err := s.registry.PushPendingConfirmation(c.Param("id")); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

type sendOTPRequest struct {
	Code string `json:"code" binding:"required,len=5"`
}

func (s *Server) sendOTP(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}

	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	b.SendOTP(req.Code)
	c.Status(http.StatusNoContent)
}

func (s *Server) getAPIKey(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}

	key, err := b.LoadAPIKey()
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_key": key})
}

func (s *Server) getOfferToken(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}

	token, err := b.GetOfferToken()
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) getInventory(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}

	opts := &steam.InventoryOptions{
		AppID:   s.cfg.DefaultAppID,
		StartID: c.Query("start"),
	}
	if raw := c.Query("app_id"); raw != "" {
		app, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			abortBadRequest(c, err)
			return
		}
		opts.AppID = uint32(app)
	}
	if raw := c.Query("context_id"); raw != "" {
		ctxID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			abortBadRequest(c, err)
			return
		}
		opts.ContextID = uint32(ctxID)
	}

	inv, err := b.LoadInventory(opts)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       inv.Items,
		"total_count": inv.TotalCount,
		"more_start":  inv.MoreStart,
	})
}

func (s *Server) getInventoryContext(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}

	ctx, err := b.LoadInventoryContext()
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctx)
}

func (s *Server) listOffers(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}

	sent, received, err := b.GetActiveOffers()
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent, "received": received})
}

func (s *Server) getOffer(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}

	offer, err := b.GetOffer(c.Param("offerID"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (s *Server) acceptOffer(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}

	status, err := b.AcceptOffer(c.Param("offerID"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) cancelOffer(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}

	if err := b.CancelOffer(c.Param("offerID")); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type assetRequest struct {
	AssetID   string `json:"asset_id" binding:"required"`
	AppID     string `json:"app_id"`
	ContextID string `json:"context_id"`
	Amount    string `json:"amount"`
}

type createOfferRequest struct {
	Partner   string         `json:"partner" binding:"required"`
	TradeURL  string         `json:"trade_url"`
	Message   string         `json:"message"`
	BotItems  []assetRequest `json:"bot_items"`
	UserItems []assetRequest `json:"user_items"`
}

func (s *Server) createOffer(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}

	var req createOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	offer, err := b.MakeOffer(bot.OfferOptions{
		Partner:   req.Partner,
		TradeURL:  req.TradeURL,
		Message:   req.Message,
		BotItems:  s.toAssets(req.BotItems),
		UserItems: s.toAssets(req.UserItems),
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

// toAssets 补全省略的资产字段
func (s *Server) toAssets(reqs []assetRequest) []steam.Asset {
	assets := make([]steam.Asset, 0, len(reqs))
	for _, r := range reqs {
		a := steam.Asset{
			AssetID:   r.AssetID,
			AppID:     r.AppID,
			ContextID: r.ContextID,
			Amount:    r.Amount,
		}
		if a.AppID == "" {
			a.AppID = strconv.FormatUint(uint64(s.cfg.DefaultAppID), 10)
		}
		if a.ContextID == "" {
			a.ContextID = "2"
		}
		if a.Amount == "" {
			a.Amount = "1"
		}
		assets = append(assets, a)
	}
	return assets
}

func (s *Server) getGameInfo(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}
	app, ok := s.appFromParam(c)
	if !ok {
		return
	}

	status, err := b.GameStatus(app)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) getGameInventory(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}
	app, ok := s.appFromParam(c)
	if !ok {
		return
	}

	items, upAt, err := b.AwaitGameReady(c.Request.Context(), app, s.cfg.GameReadyTimeout)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "session_up_at": upAt})
}

func (s *Server) playGame(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}
	app, ok := s.appFromParam(c)
	if !ok {
		return
	}

	if err := b.PlayGame(app); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"playing": app})
}

func (s *Server) closeGame(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}
	b.CloseGame()
	c.Status(http.StatusNoContent)
}

type inspectRequest struct {
	Link string `json:"link" binding:"required"`
}

func (s *Server) inspectItem(c *gin.Context) {
	b := s.botFromParam(c)
	if b == nil {
		return
	}
	app, ok := s.appFromParam(c)
	if !ok {
		return
	}

	var req inspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	result, err := b.InspectItem(app, req.Link)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
