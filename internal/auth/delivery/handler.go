package delivery

import (
	"log"
	"net/http"

	"linecal-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
}

func NewAuthHandler(authUsecase usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase}
}

// GoogleAuth starts the OAuth flow for a LINE user.
func (h *AuthHandler) GoogleAuth(c *gin.Context) {
	lineUserID := c.Query("userId")
	if lineUserID == "" {
		c.String(http.StatusBadRequest, "Missing userId parameter")
		return
	}

	authURL, err := h.authUsecase.AuthURL(lineUserID)
	if err != nil {
		log.Printf("[ERROR] failed to build auth URL: %v", err)
		c.String(http.StatusInternalServerError, "認証の開始に失敗しました")
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

const callbackSuccessHTML = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>認証完了</title>
    <style>
      body { font-family: sans-serif; text-align: center; padding: 50px; }
      .success { color: #00B900; font-size: 48px; margin-bottom: 20px; }
      h1 { color: #333; }
      p { color: #666; font-size: 18px; }
    </style>
  </head>
  <body>
    <div class="success">✓</div>
    <h1>認証が完了しました</h1>
    <p>LINEでメッセージを送ってください</p>
  </body>
</html>`

// GoogleCallback exchanges the authorization code and stores the
// encrypted credential.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		c.String(http.StatusBadRequest, "Missing code or state parameter")
		return
	}

	lineUserID, err := h.authUsecase.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		log.Printf("[ERROR] OAuth callback failed: %v", err)
		c.String(http.StatusInternalServerError, "認証に失敗しました")
		return
	}

	log.Printf("google account linked for user %s", lineUserID)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, callbackSuccessHTML)
}
