package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/nftmarket/internal/market"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// execute runs a command and publishes the committed events. Publishing is
// best-effort: a delivery failure is logged, not surfaced to the caller.
func (s *Server) execute(c *gin.Context, call market.Call, cmd market.Command) {
	evts, err := s.engine.Execute(c.Request.Context(), call, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.publisher.Publish(c.Request.Context(), evts); err != nil {
		s.logger.Error("event publish failed",
			zap.String("op", cmd.Name()),
			zap.Error(err))
	}
	if evts == nil {
		evts = []market.Event{}
	}
	c.JSON(http.StatusOK, eventsResponse{Events: evts})
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, Problem{
			Type:   "urn:nftmarket:error:malformed_request",
			Title:  http.StatusText(http.StatusBadRequest),
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return false
	}
	return true
}

func (s *Server) handleGetParams(c *gin.Context) {
	params, err := s.engine.ParamsSnapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, params)
}

func (s *Server) handleUpdateParams(c *gin.Context) {
	var req updateParamsRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := market.UpdateParams{
		FeePercent: req.FeePercent,
		Operators:  req.Operators,
		MinPrice:   req.MinPrice,
	}
	if req.AskExpiry != nil {
		r := req.AskExpiry.toRange()
		cmd.AskExpiry = &r
	}
	if req.BidExpiry != nil {
		r := req.BidExpiry.toRange()
		cmd.BidExpiry = &r
	}
	if req.AuctionExpiry != nil {
		r := req.AuctionExpiry.toRange()
		cmd.AuctionExpiry = &r
	}
	s.execute(c, req.toCall(s.now()), cmd)
}

func (s *Server) handleGetAsk(c *gin.Context) {
	ask, found, err := s.engine.AskFor(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, Problem{
			Type:   "urn:nftmarket:error:not_found",
			Title:  http.StatusText(http.StatusNotFound),
			Status: http.StatusNotFound,
			Detail: "no ask for token " + c.Param("token"),
		})
		return
	}
	c.JSON(http.StatusOK, ask)
}

func (s *Server) handleSetAsk(c *gin.Context) {
	var req setAskRequest
	if !bindJSON(c, &req) {
		return
	}
	s.execute(c, req.toCall(s.now()), market.SetAsk{
		TokenID:        c.Param("token"),
		Price:          req.Price.toCoin(),
		FundsRecipient: req.FundsRecipient,
		ReservedFor:    req.ReservedFor,
		ExpiresAt:      req.ExpiresAt,
	})
}

func (s *Server) handleRemoveAsk(c *gin.Context) {
	var req callFields
	if !bindJSON(c, &req) {
		return
	}
	s.execute(c, req.toCall(s.now()), market.RemoveAsk{TokenID: c.Param("token")})
}

func (s *Server) handleListBids(c *gin.Context) {
	opts := market.QueryOptions{
		Descending: c.Query("order") == "desc",
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, &market.Error{Kind: market.KindValidation, Op: "list-bids",
				Detail: "malformed limit", Expected: "integer", Actual: v})
			return
		}
		opts.Limit = limit
	}
	if c.Query("live") == "true" {
		now := s.now()
		opts.FilterExpiry = &now
	}
	if price := c.Query("start_after_price"); price != "" {
		amount, err := decimal.NewFromString(price)
		if err != nil {
			writeError(c, &market.Error{Kind: market.KindValidation, Op: "list-bids",
				Detail: "malformed cursor price", Expected: "decimal", Actual: price})
			return
		}
		opts.StartAfter = &market.BidCursor{Price: amount, Bidder: c.Query("start_after_bidder")}
	}

	bids, err := s.engine.BidsByTokenPrice(c.Request.Context(), c.Param("token"), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	if bids == nil {
		bids = []market.Bid{}
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

func (s *Server) handleSetBid(c *gin.Context) {
	var req setBidRequest
	if !bindJSON(c, &req) {
		return
	}
	s.execute(c, req.toCall(s.now()), market.SetBid{
		TokenID:   c.Param("token"),
		Price:     req.Price.toCoin(),
		ExpiresAt: req.ExpiresAt,
	})
}

func (s *Server) handleRemoveBid(c *gin.Context) {
	var req callFields
	if !bindJSON(c, &req) {
		return
	}
	s.execute(c, req.toCall(s.now()), market.RemoveBid{TokenID: c.Param("token")})
}

func (s *Server) handleAcceptBid(c *gin.Context) {
	var req acceptBidRequest
	if !bindJSON(c, &req) {
		return
	}
	s.execute(c, req.toCall(s.now()), market.AcceptBid{
		TokenID: c.Param("token"),
		Bidder:  req.Bidder,
	})
}

func (s *Server) handleGetCollectionBid(c *gin.Context) {
	bid, found, err := s.engine.CollectionBidFor(c.Request.Context(), c.Param("bidder"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, Problem{
			Type:   "urn:nftmarket:error:not_found",
			Title:  http.StatusText(http.StatusNotFound),
			Status: http.StatusNotFound,
			Detail: "no collection bid by " + c.Param("bidder"),
		})
		return
	}
	c.JSON(http.StatusOK, bid)
}

func (s *Server) handleSetCollectionBid(c *gin.Context) {
	var req setCollectionBidRequest
	if !bindJSON(c, &req) {
		return
	}
	s.execute(c, req.toCall(s.now()), market.SetCollectionBid{
		Units:     req.Units,
		Price:     req.Price.toCoin(),
		ExpiresAt: req.ExpiresAt,
	})
}

func (s *Server) handleRemoveCollectionBid(c *gin.Context) {
	var req callFields
	if !bindJSON(c, &req) {
		return
	}
	s.execute(c, req.toCall(s.now()), market.RemoveCollectionBid{})
}

func (s *Server) handleAcceptCollectionBid(c *gin.Context) {
	var req acceptCollectionBidRequest
	if !bindJSON(c, &req) {
		return
	}
	s.execute(c, req.toCall(s.now()), market.AcceptCollectionBid{
		TokenID: req.TokenID,
		Bidder:  c.Param("bidder"),
	})
}

func (s *Server) handleGetAuction(c *gin.Context) {
	auction, found, err := s.engine.AuctionFor(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, Problem{
			Type:   "urn:nftmarket:error:not_found",
			Title:  http.StatusText(http.StatusNotFound),
			Status: http.StatusNotFound,
			Detail: "no auction for token " + c.Param("token"),
		})
		return
	}
	c.JSON(http.StatusOK, auction)
}

func (s *Server) handleSetAuction(c *gin.Context) {
	var req setAuctionRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := market.SetAuction{
		TokenID:        c.Param("token"),
		StartingPrice:  req.StartingPrice.toCoin(),
		FundsRecipient: req.FundsRecipient,
		ExpiresAt:      req.ExpiresAt,
	}
	if req.ReservePrice != nil {
		coin := req.ReservePrice.toCoin()
		cmd.ReservePrice = &coin
	}
	s.execute(c, req.toCall(s.now()), cmd)
}

func (s *Server) handleCloseAuction(c *gin.Context) {
	var req closeAuctionRequest
	if !bindJSON(c, &req) {
		return
	}
	s.execute(c, req.toCall(s.now()), market.CloseAuction{
		TokenID:          c.Param("token"),
		AcceptHighestBid: req.AcceptHighestBid,
	})
}

func (s *Server) handleWhitelistConfig(c *gin.Context) {
	cfg, err := s.whitelist.ConfigSnapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	active, err := s.whitelist.IsActive(c.Request.Context(), s.now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg, "is_active": active})
}

func (s *Server) handleWhitelistMembers(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, &market.Error{Kind: market.KindValidation, Op: "whitelist-members",
				Detail: "malformed limit", Expected: "integer", Actual: v})
			return
		}
		limit = n
	}
	members, err := s.whitelist.Members(c.Request.Context(), c.Query("start_after"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if members == nil {
		members = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) handleWhitelistHasMember(c *gin.Context) {
	has, err := s.whitelist.HasMember(c.Request.Context(), c.Param("addr"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_member": has})
}

func (s *Server) handleWhitelistAddMembers(c *gin.Context) {
	var req membersRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.whitelist.AddMembers(c.Request.Context(), req.Sender, req.Members); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": len(req.Members)})
}

func (s *Server) handleWhitelistRemoveMembers(c *gin.Context) {
	var req membersRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.whitelist.RemoveMembers(c.Request.Context(), req.Sender, req.Members, s.now()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": len(req.Members)})
}

func (s *Server) handleWhitelistStartTime(c *gin.Context) {
	var req windowTimeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.whitelist.UpdateStartTime(c.Request.Context(), req.Sender, req.Time, s.now()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleWhitelistEndTime(c *gin.Context) {
	var req windowTimeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.whitelist.UpdateEndTime(c.Request.Context(), req.Sender, req.Time, s.now()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleWhitelistPerAddressLimit(c *gin.Context) {
	var req limitRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.whitelist.UpdatePerAddressLimit(c.Request.Context(), req.Sender, req.Limit); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleWhitelistMemberLimit(c *gin.Context) {
	var req limitRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.whitelist.IncreaseMemberLimit(c.Request.Context(), req.Sender, req.Limit); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
