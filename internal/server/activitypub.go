package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/placeholder"
	"github.com/roach88/apfuzz/internal/store"
)

// maxInboxBody bounds what the inbox reads.
const maxInboxBody = 1 << 20

var acctDomain = regexp.MustCompile(`@.*$`)

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleWebfinger(c *gin.Context) {
	resource := c.Query("resource")
	if !strings.Contains(resource, "acct:") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": `Bad request. Please make sure "acct:USER@DOMAIN" is what you are sending as the "resource" query parameter.`,
		})
		return
	}

	name := acctDomain.ReplaceAllString(strings.Replace(resource, "acct:", "", 1), "")
	a, err := s.deps.Messages.GetAccount(c.Request.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No webfinger record found for " + name + "."})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	writeJSONText(c, http.StatusOK, a.Webfinger)
}

func (s *Server) handleNodeInfoIndex(c *gin.Context) {
	writeDoc(c, http.StatusOK, s.deps.Site.NodeInfoIndex())
}

func handleNodeInfo(c *gin.Context) {
	writeDoc(c, http.StatusOK, activity.NewNodeInfo())
}

func (s *Server) handleActor(c *gin.Context) {
	a, err := s.deps.Accounts.GetOrCreate(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeJSONText(c, http.StatusOK, a.Actor)
}

func (s *Server) handleHashtag(c *gin.Context) {
	writeDoc(c, http.StatusOK, s.deps.Site.TagCollection(c.Param("tag")))
}

func (s *Server) handleObject(c *gin.Context) {
	doc, err := s.deps.Messages.GetMessageObject(c.Request.Context(), c.Param("guid"))
	s.writeMessage(c, doc, err)
}

func (s *Server) handleActivity(c *gin.Context) {
	doc, err := s.deps.Messages.GetMessage(c.Request.Context(), c.Param("guid"))
	s.writeMessage(c, doc, err)
}

func (s *Server) writeMessage(c *gin.Context, doc string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.String(http.StatusNotFound, "Message not found.")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	writeJSONText(c, http.StatusOK, doc)
}

// handleInbox accepts ActivityPub JSON. A Follow is answered with an
// Accept delivered in the background.
func (s *Server) handleInbox(c *gin.Context) {
	if !isActivityJSON(c.GetHeader("Content-Type")) {
		c.String(http.StatusNotAcceptable,
			"Not Acceptable: This endpoint only accepts application/activity+json and application/ld+json requests.")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInboxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := placeholder.ParseObject(body)
	if err != nil {
		respondError(c, err)
		return
	}

	typ, _ := doc["type"].(string)
	s.logger.Info("inbox received", "type", typ, "actor", doc["actor"])
	if typ == "Follow" {
		s.background("accept follow", func(ctx context.Context) error {
			_, err := s.deps.Sender.AcceptFollow(ctx, doc)
			return err
		})
	}
	c.Status(http.StatusAccepted)
}
