package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

const dateLayout = "January 2, 2006"

type receiptData struct {
	Name        string
	ProductName string
	Receipt     subscription.Receipt
}

type failureData struct {
	Name        string
	ProductName string
	BillingURL  string
	Alert       subscription.FailureAlert
}

func greeting(name string) string {
	if name == "" {
		return "Hi,"
	}
	return "Hi " + templ.EscapeString(name) + ","
}

func receiptEmail(d receiptData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		r := d.Receipt
		_, err := fmt.Fprintf(w, `<p>%s</p>`+
			`<p>Thanks for your payment. Here is your receipt for %s.</p>`+
			`<table>`+
			`<tr><td>Plan</td><td>%s</td></tr>`+
			`<tr><td>Amount</td><td>%s</td></tr>`+
			`<tr><td>Paid on</td><td>%s</td></tr>`+
			`<tr><td>Transaction</td><td>%s</td></tr>`+
			`<tr><td>Next billing date</td><td>%s</td></tr>`+
			`</table>`,
			greeting(d.Name),
			templ.EscapeString(d.ProductName),
			templ.EscapeString(r.PlanName),
			templ.EscapeString(r.Amount.String()),
			r.PaidAt.Format(dateLayout),
			templ.EscapeString(r.TransactionRef),
			r.NextBillingDate.Format(dateLayout),
		)
		return err
	})
}

func failureEmail(d failureData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		a := d.Alert
		status := fmt.Sprintf("We will try again soon. This was attempt %d of %d.", a.Attempt, a.Threshold)
		if a.PastDue {
			status = "Your subscription is now past due. Please update your payment method to keep access."
		}
		action := ""
		if d.BillingURL != "" {
			action = fmt.Sprintf(`<p><a href="%s">Update payment method</a></p>`, templ.EscapeString(d.BillingURL))
		}
		_, err := fmt.Fprintf(w, `<p>%s</p>`+
			`<p>We couldn't charge %s for your %s %s subscription.</p>`+
			`<p>%s</p>`+
			`%s`,
			greeting(d.Name),
			templ.EscapeString(a.Amount.String()),
			templ.EscapeString(d.ProductName),
			templ.EscapeString(a.PlanName),
			status,
			action,
		)
		return err
	})
}
