package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// Property names of the export database.
const (
	propMerchant      = "Merchant"
	propTransactionID = "Transaction ID"
	propContext       = "Context"
	propDate          = "Date"
	propAmount        = "Amount"
	propAction        = "Action"
	propItem          = "Item"
	propReference     = "Reference"
	propStatus        = "Status"
)

const (
	statusPending = "Pending"
	statusTagged  = "Tagged"
)

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{Content: s},
			},
		},
	}
}

func selectOption(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: name}}
}

// TransactionToProperties converts a ledger row to the properties of one
// page in the export database.
func TransactionToProperties(tx *domain.Transaction, contextName string) notionapi.Properties {
	merchant := tx.Merchant
	if merchant == "" {
		merchant = domain.UnknownMerchant
	}

	date := notionapi.Date(tx.Date.In(time.UTC))
	props := notionapi.Properties{
		propMerchant: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: merchant},
				},
			},
		},
		propTransactionID: richText(tx.ID),
		propContext:       selectOption(contextName),
		propDate:          notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}},
		propAmount:        notionapi.NumberProperty{Number: tx.Amount.InexactFloat64()},
		propAction:        selectOption(string(tx.Action)),
		propStatus:        selectOption(statusPending),
	}

	if !tx.Pending() {
		props[propItem] = richText(*tx.Item)
		props[propStatus] = selectOption(statusTagged)
	}
	if tx.Reference != nil {
		props[propReference] = richText(*tx.Reference)
	}

	return props
}

// pageText returns the plain text of a rich text or title property.
func pageText(page notionapi.Page, name string) string {
	switch prop := page.Properties[name].(type) {
	case *notionapi.RichTextProperty:
		if len(prop.RichText) > 0 {
			return prop.RichText[0].PlainText
		}
	case *notionapi.TitleProperty:
		if len(prop.Title) > 0 {
			return prop.Title[0].PlainText
		}
	}
	return ""
}

// pageSelect returns the option name of a select property.
func pageSelect(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name].(*notionapi.SelectProperty); ok {
		return prop.Select.Name
	}
	return ""
}
