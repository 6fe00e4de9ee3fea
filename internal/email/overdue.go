package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/mrlokans/library/internal/overdue"
)

var overdueTemplate = template.Must(template.New("overdue").Parse(`
<h2>Overdue Book Notification</h2>
<p>Dear {{.UserName}},</p>
<p>You have an overdue book:</p>
<ul>
    <li><strong>Title:</strong> {{.BookTitle}}</li>
    <li><strong>Author:</strong> {{.BookAuthor}}</li>
    <li><strong>Due Date:</strong> {{.DueDate.Format "2006-01-02"}}</li>
</ul>
<p>Please return this book as soon as possible to avoid any late fees.</p>
<p>Thank you,<br>Library Management System</p>
`))

// OverdueNotifier renders overdue notices and sends them with a Client.
type OverdueNotifier struct {
	client *Client
}

func NewOverdueNotifier(client *Client) *OverdueNotifier {
	return &OverdueNotifier{client: client}
}

func (n *OverdueNotifier) NotifyOverdue(ctx context.Context, notice overdue.Notice) error {
	if notice.UserEmail == "" {
		return fmt.Errorf("checkout %s has no recipient email", notice.CheckoutID)
	}

	var body bytes.Buffer
	if err := overdueTemplate.Execute(&body, notice); err != nil {
		return fmt.Errorf("render overdue email: %w", err)
	}

	return n.client.Send(ctx, Message{
		To:      []string{notice.UserEmail},
		Subject: "Overdue Book: " + notice.BookTitle,
		HTML:    body.String(),
	})
}
