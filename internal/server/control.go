package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roach88/apfuzz/internal/corpus"
	"github.com/roach88/apfuzz/internal/firehose"
	"github.com/roach88/apfuzz/internal/placeholder"
	"github.com/roach88/apfuzz/internal/synth"
)

// statsResponse summarizes the corpus and the delivery state.
type statsResponse struct {
	TotalSum       int64           `json:"totalSum"`
	Messages       int             `json:"messages"`
	TargetEndpoint string          `json:"targetEndpoint"`
	Firehose       firehose.Status `json:"firehose"`
}

func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()
	sum, err := s.deps.Corpus.TotalSum(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	n, err := s.deps.Messages.CountMessages(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statsResponse{
		TotalSum:       sum,
		Messages:       n,
		TargetEndpoint: s.deps.Target.Get(),
		Firehose:       s.deps.Firehose.Status(),
	})
}

// setTargetRequest is the body of /set-target, as a form or JSON.
type setTargetRequest struct {
	TargetEndpoint string `form:"targetEndpoint" json:"targetEndpoint" binding:"required,url"`
}

func (s *Server) handleSetTarget(c *gin.Context) {
	var req setTargetRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "targetEndpoint must be a URL: " + err.Error()})
		return
	}
	s.deps.Target.Set(req.TargetEndpoint)
	s.logger.Info("target endpoint set", "target", req.TargetEndpoint)
	c.Redirect(http.StatusSeeOther, "/")
}

// postRequest carries a message to sign and send.
type postRequest struct {
	Schema string `form:"schema" json:"schema"`
}

func (s *Server) handlePostToEndpoint(c *gin.Context) {
	target := s.deps.Target.Get()
	if target == "" {
		c.String(http.StatusBadRequest, "Target endpoint is not set.")
		return
	}
	var req postRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, fmt.Errorf("post body: %w: %w", placeholder.ErrParse, err))
		return
	}
	if req.Schema == "" {
		c.String(http.StatusBadRequest, "No schema to post.")
		return
	}

	guid, err := s.deps.Sender.SignAndSend(c.Request.Context(), []byte(req.Schema), target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusMovedPermanently, "/m/"+guid+"/activity")
}

func (s *Server) handleSendFollow(c *gin.Context) {
	inbox := s.deps.Target.Get()
	if inbox == "" {
		c.String(http.StatusBadRequest, "Target endpoint is not set.")
		return
	}
	guid, err := s.deps.Sender.SendFollow(c.Request.Context(), inbox, s.deps.FollowTarget)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guid": guid, "target": inbox})
}

// filterFromQuery reads types, software and notesOnly.
func filterFromQuery(c *gin.Context) corpus.Filter {
	var f corpus.Filter
	if types := c.Query("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Types = append(f.Types, t)
			}
		}
	}
	f.Software = c.Query("software")
	f.NotesOnly = c.Query("notesOnly") == "true"
	return f
}

func (s *Server) handleFirehoseStart(c *gin.Context) {
	delay, err := firehose.ParseDelay(c.Query("delay"))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid delay parameter. It must be a positive integer.")
		return
	}
	opts := firehose.Options{
		Delay:            delay,
		AnnounceToCreate: c.Query("rewriteAnnounceToCreate") == "true",
		Filter:           filterFromQuery(c),
	}
	if _, err := s.deps.Firehose.Start(s.ctx, opts); err != nil {
		respondError(c, err)
		return
	}
	c.String(http.StatusOK, "Firehose started with a delay of "+strconv.FormatInt(delay.Milliseconds(), 10)+" milliseconds.")
}

func (s *Server) handleFirehoseStop(c *gin.Context) {
	if s.deps.Firehose.Stop() {
		c.String(http.StatusOK, "Firehose stopped.")
		return
	}
	c.String(http.StatusOK, "Firehose is not running.")
}

func (s *Server) handleFirehoseStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Firehose.Status())
}

// previewResponse is a synthesized template.
type previewResponse struct {
	Hash     string `json:"hash"`
	Notes    string `json:"notes"`
	Software string `json:"software"`
	Schema   string `json:"schema"`
}

func (s *Server) preview(ctx context.Context, tmpl corpus.Template, announceToCreate bool) (previewResponse, error) {
	res, err := s.deps.Synth.Synthesize(ctx, synth.Request{
		Template:         []byte(tmpl.Schema),
		Note:             tmpl.Notes,
		Software:         tmpl.Software,
		AnnounceToCreate: announceToCreate,
	})
	if err != nil {
		return previewResponse{}, err
	}
	return previewResponse{
		Hash:     tmpl.Hash,
		Notes:    tmpl.Notes,
		Software: tmpl.Software,
		Schema:   string(res.JSON),
	}, nil
}

func (s *Server) handleRandomSchema(c *gin.Context) {
	ctx := c.Request.Context()
	tmpl, err := s.deps.Corpus.Random(ctx, filterFromQuery(c), s.deps.Rand)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := s.preview(ctx, tmpl, c.Query("rewriteAnnounceToCreate") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleShowSchema(c *gin.Context) {
	hash := c.Query("hash")
	if hash == "" {
		c.String(http.StatusBadRequest, "Hash is required.")
		return
	}
	ctx := c.Request.Context()
	tmpl, err := s.deps.Corpus.Get(ctx, hash)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			c.String(http.StatusNotFound, "Schema not found.")
			return
		}
		respondError(c, err)
		return
	}
	resp, err := s.preview(ctx, tmpl, c.Query("rewriteAnnounceToCreate") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUniqueSoftware(c *gin.Context) {
	list, err := s.deps.Corpus.Software(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleSchemasWithNotes(c *gin.Context) {
	list, err := s.deps.Corpus.WithNotes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleDistinctTypes(c *gin.Context) {
	list, err := s.deps.Corpus.Types(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
