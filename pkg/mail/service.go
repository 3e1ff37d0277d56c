package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/async"
	"github.com/platinummonkey/warden/pkg/orgs"
)

const (
	sendConcurrency = 4
	sendTimeout     = 30 * time.Second
)

var (
	inviteTemplate = template.Must(template.New("invite").Parse(`<!DOCTYPE html>
<html>
<body>
<p>You have been invited to join the <b>{{.OrganizationName}}</b> organization.</p>
<p><a href="{{.URL}}">Join Organization Now</a></p>
{{if .IsFree}}<p>This organization is on the free plan.</p>{{end}}
<p>If you do not wish to join this organization, you can safely ignore this email.</p>
</body>
</html>
`))

	confirmedTemplate = template.Must(template.New("confirmed").Parse(`<!DOCTYPE html>
<html>
<body>
<p>You have been confirmed as a member of the <b>{{.OrganizationName}}</b> organization.</p>
<p>You can now access the organization's shared items from your vault at <a href="{{.VaultURL}}">{{.VaultURL}}</a>.</p>
</body>
</html>
`))
)

type inviteData struct {
	OrganizationName string
	URL              string
	IsFree           bool
}

type confirmedData struct {
	OrganizationName string
	VaultURL         string
}

// Service renders membership email and hands it to a Sender
type Service struct {
	sender   Sender
	vaultURL *url.URL
	logger   logrus.FieldLogger
}

// NewService creates a mail service linking to the web vault at vaultURL
func NewService(sender Sender, vaultURL string, logger logrus.FieldLogger) (*Service, error) {
	if sender == nil {
		return nil, errors.New("mail sender is required")
	}
	u, err := url.Parse(strings.TrimRight(vaultURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid web vault URL %q", vaultURL)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{sender: sender, vaultURL: u, logger: logger}, nil
}

// BulkSendOrganizationInviteEmail sends one invite per recipient, a few at
// a time. Every recipient is attempted; failures are joined.
func (s *Service) BulkSendOrganizationInviteEmail(ctx context.Context, orgName string, invites []orgs.InviteMessage, isFree bool) error {
	type outgoing struct {
		orgUserID uuid.UUID
		msg       Message
	}

	var messages []outgoing
	for _, invite := range invites {
		ou := invite.OrganizationUser
		email := ou.EmailAddress()
		if email == "" {
			continue
		}

		body, err := render(inviteTemplate, inviteData{
			OrganizationName: orgName,
			URL:              s.acceptURL(orgName, ou, invite.Token),
			IsFree:           isFree,
		})
		if err != nil {
			return err
		}
		messages = append(messages, outgoing{
			orgUserID: ou.ID,
			msg:       Message{To: email, Subject: fmt.Sprintf("Join %s", orgName), Body: body},
		})
	}

	errs := async.Batch(ctx, messages, sendConcurrency, "invite email", sendTimeout, func(ctx context.Context, o outgoing) error {
		if err := s.sender.Send(ctx, o.msg); err != nil {
			s.logger.WithError(err).WithField("organization_user_id", o.orgUserID).Warn("failed to send invite")
			return err
		}
		return nil
	})
	return errors.Join(errs...)
}

// SendOrganizationConfirmedEmail tells a member they were confirmed
func (s *Service) SendOrganizationConfirmedEmail(ctx context.Context, orgName, email string) error {
	body, err := render(confirmedTemplate, confirmedData{
		OrganizationName: orgName,
		VaultURL:         s.vaultURL.String(),
	})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, Message{
		To:      email,
		Subject: fmt.Sprintf("You Have Been Confirmed To %s", orgName),
		Body:    body,
	})
}

// acceptURL links to the web vault accept page for ou
func (s *Service) acceptURL(orgName string, ou *orgs.OrganizationUser, token string) string {
	q := url.Values{}
	q.Set("organizationId", ou.OrganizationID.String())
	q.Set("organizationUserId", ou.ID.String())
	q.Set("email", ou.EmailAddress())
	q.Set("organizationName", orgName)
	q.Set("token", token)
	return s.vaultURL.String() + "/#/accept-organization?" + q.Encode()
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}
