package submission

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

// Register creates the user account
func (c *Client) Register(ctx context.Context, reg Registration) (AuthResult, error) {
	var out AuthResult
	err := c.sendJSON(ctx, Session{}, http.MethodPost, "/auth/register", reg, &out)
	return out, err
}

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, creds Credentials) (AuthResult, error) {
	var out AuthResult
	err := c.sendJSON(ctx, Session{}, http.MethodPost, "/auth/login", creds, &out)
	return out, err
}

// Profile returns the user behind the session
func (c *Client) Profile(ctx context.Context, sess Session) (User, error) {
	var out User
	err := c.get(ctx, sess, "/auth/me", &out)
	return out, err
}

// VerifyTwoFactor checks a 6-digit second factor
func (c *Client) VerifyTwoFactor(ctx context.Context, sess Session, code string) (AuthResult, error) {
	var out AuthResult
	err := c.sendJSON(ctx, sess, http.MethodPost, "/auth/verify-2fa", map[string]string{"code": code}, &out)
	return out, err
}

// UploadDocument sends one evidence file. It has its own, longer timeout.
func (c *Client) UploadDocument(ctx context.Context, sess Session, doc DocumentUpload) (UploadReceipt, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("document_type", doc.DocumentType); err != nil {
		return UploadReceipt{}, err
	}
	if doc.Field != "" {
		if err := mw.WriteField("field", doc.Field); err != nil {
			return UploadReceipt{}, err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, doc.FileName))
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return UploadReceipt{}, err
	}
	if _, err := io.Copy(part, doc.Body); err != nil {
		return UploadReceipt{}, fmt.Errorf("failed to buffer upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadReceipt{}, err
	}

	var out UploadReceipt
	err = c.do(ctx, sess, http.MethodPost, "/verification/upload-document", &buf, mw.FormDataContentType(), c.uploadTimeout, &out)
	return out, err
}

// ApplicationProgress returns the pipeline status of the user's application
func (c *Client) ApplicationProgress(ctx context.Context, sess Session) (ApplicationProgress, error) {
	var out ApplicationProgress
	err := c.get(ctx, sess, "/verification/application-progress", &out)
	return out, err
}

// SubmitKYC submits the completed KYC application
func (c *Client) SubmitKYC(ctx context.Context, sess Session, app KYCApplication) (KYCResult, error) {
	var out KYCResult
	err := c.sendJSON(ctx, sess, http.MethodPost, "/kyc/kyc/check", app, &out)
	return out, err
}

// Accounts lists the user's accounts
func (c *Client) Accounts(ctx context.Context, sess Session) ([]Account, error) {
	var out []Account
	err := c.get(ctx, sess, "/accounts/", &out)
	return out, err
}

// Transactions lists the user's transactions
func (c *Client) Transactions(ctx context.Context, sess Session) ([]Transaction, error) {
	var out []Transaction
	err := c.get(ctx, sess, "/transactions/", &out)
	return out, err
}

// Notifications lists process notifications
func (c *Client) Notifications(ctx context.Context, sess Session) ([]Notification, error) {
	var out []Notification
	err := c.get(ctx, sess, "/notifications/notifications", &out)
	return out, err
}

// Offers lists product recommendations
func (c *Client) Offers(ctx context.Context, sess Session) ([]Offer, error) {
	var out []Offer
	err := c.get(ctx, sess, "/recommendations/offers", &out)
	return out, err
}

// Chat sends one chatbot message with optional page context
func (c *Client) Chat(ctx context.Context, sess Session, message string, pageContext map[string]any) (ChatReply, error) {
	var out ChatReply
	in := map[string]any{"message": message, "context": pageContext}
	err := c.sendJSON(ctx, sess, http.MethodPost, "/chatbot/chat", in, &out)
	return out, err
}

// ActivateUser approves an application by activating its account
func (c *Client) ActivateUser(ctx context.Context, sess Session, userID string) error {
	return c.sendJSON(ctx, sess, http.MethodPost, "/admin/users/"+url.PathEscape(userID)+"/activate", nil, nil)
}
