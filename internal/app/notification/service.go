package notification

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/mailer"
)

// NotificationService tells the buyer about the outcome of checkout. It never
// returns an error: a lost e-mail must not undo a placed order.
type NotificationService interface {
	SendOrderConfirmation(ctx context.Context, c *OrderConfirmation)
}

type notificationService struct {
	mailer mailer.Mailer
	logger *zap.Logger
}

func NewNotificationService(m mailer.Mailer, logger *zap.Logger) NotificationService {
	return &notificationService{
		mailer: m,
		logger: logger,
	}
}

func (s *notificationService) SendOrderConfirmation(ctx context.Context, c *OrderConfirmation) {
	if c == nil || c.Order == nil {
		return
	}
	log := s.logger.With(zap.String("order_id", c.Order.ID))
	if strings.TrimSpace(c.Email) == "" {
		log.Warn("Buyer has no e-mail, skipping order confirmation")
		return
	}

	view := newConfirmationView(c)
	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, view); err != nil {
		log.Error("Failed to render order confirmation text", zap.Error(err))
		return
	}
	if err := htmlTemplate.Execute(&html, view); err != nil {
		log.Error("Failed to render order confirmation html", zap.Error(err))
		return
	}

	msg := mailer.Message{
		To:      c.Email,
		Subject: "Pedido " + shortID(c.Order.ID) + " recebido",
		Text:    text.String(),
		HTML:    html.String(),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error("Failed to send order confirmation",
			zap.String("payment_method", string(c.PaymentMethod)),
			zap.Error(err))
		return
	}
	log.Info("Order confirmation sent", zap.String("payment_method", string(c.PaymentMethod)))
}

type confirmationView struct {
	OrderRef      string
	Recipient     string
	Items         []itemView
	Subtotal      string
	Shipping      string
	Discount      string
	Total         string
	Address       []string
	Method        string
	PaymentStatus string
	PaymentFailed bool
	PixQRCode     string
	PixQRCodeURL  string
	PixExpiresAt  string
	BoletoBarcode string
	BoletoURL     string
	BoletoDueAt   string
	CardLastFour  string
}

type itemView struct {
	Name      string
	Quantity  int
	UnitPrice string
	Total     string
}

func newConfirmationView(c *OrderConfirmation) confirmationView {
	o := c.Order
	v := confirmationView{
		OrderRef:  shortID(o.ID),
		Recipient: c.Address.RecipientName,
		Subtotal:  FormatBRL(o.SubtotalCents),
		Shipping:  FormatBRL(o.ShippingCents),
		Total:     FormatBRL(o.TotalCents),
		Address:   addressLines(c.Address),
		Method:    methodLabel(c.PaymentMethod),
	}
	if o.DiscountCents > 0 {
		v.Discount = FormatBRL(o.DiscountCents)
	}
	for _, it := range c.Items {
		v.Items = append(v.Items, itemView{
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: FormatBRL(it.UnitPriceCents),
			Total:     FormatBRL(it.TotalPriceCents),
		})
	}

	p := c.Payment
	if p == nil {
		v.PaymentFailed = true
		return v
	}
	v.PaymentStatus = string(p.Status)
	v.PaymentFailed = p.Status == domain.PaymentStatusFailed || p.Status == domain.PaymentStatusCanceled
	v.PixQRCode = p.PixQRCode
	v.PixQRCodeURL = p.PixQRCodeURL
	if p.PixExpiresAt != nil {
		v.PixExpiresAt = p.PixExpiresAt.In(saoPaulo).Format("02/01/2006 15:04")
	}
	v.BoletoBarcode = p.BoletoBarcode
	v.BoletoURL = p.BoletoURL
	if p.BoletoDueAt != nil {
		v.BoletoDueAt = p.BoletoDueAt.In(saoPaulo).Format("02/01/2006")
	}
	v.CardLastFour = p.CardLastFour
	return v
}

func addressLines(a domain.AddressSnapshot) []string {
	street := a.Street + ", " + a.Number
	if a.Complement != "" {
		street += " - " + a.Complement
	}
	return []string{
		street,
		a.District,
		a.City + "/" + a.State,
		"CEP " + formatCEP(a.PostalCode),
	}
}

func formatCEP(cep string) string {
	digits, err := domain.NormalizePostalCode(cep)
	if err != nil {
		return cep
	}
	return digits[:5] + "-" + digits[5:]
}

func methodLabel(m domain.PaymentMethod) string {
	switch m {
	case domain.PaymentMethodInstantTransfer:
		return "Pix"
	case domain.PaymentMethodVoucher:
		return "Boleto"
	case domain.PaymentMethodCard:
		return "Cartão de crédito"
	}
	return string(m)
}

func shortID(id string) string {
	if len(id) < 8 {
		return strings.ToUpper(id)
	}
	return strings.ToUpper(id[:8])
}

var textTemplate = texttemplate.Must(texttemplate.New("confirmation.txt").Parse(`Olá, {{.Recipient}}!

Recebemos o seu pedido #{{.OrderRef}}.
{{range .Items}}
- {{.Quantity}}x {{.Name}} ({{.UnitPrice}}): {{.Total}}{{end}}

Subtotal: {{.Subtotal}}
Frete: {{.Shipping}}{{if .Discount}}
Desconto: -{{.Discount}}{{end}}
Total: {{.Total}}

Entrega:{{range .Address}}
{{.}}{{end}}

Pagamento: {{.Method}}
{{- if .PaymentFailed}}
Não conseguimos concluir o pagamento. Você pode tentar novamente pela página do pedido.
{{- else if .PixQRCode}}
Pix copia e cola: {{.PixQRCode}}
Válido até {{.PixExpiresAt}}.
{{- else if .BoletoBarcode}}
Linha digitável: {{.BoletoBarcode}}
Boleto: {{.BoletoURL}}
Vencimento: {{.BoletoDueAt}}.
{{- else if .CardLastFour}}
Cartão final {{.CardLastFour}}, status {{.PaymentStatus}}.
{{- end}}
`))

var htmlTemplate = htmltemplate.Must(htmltemplate.New("confirmation.html").Parse(`<!doctype html>
<html><body>
<h1>Pedido #{{.OrderRef}}</h1>
<p>Olá, {{.Recipient}}! Recebemos o seu pedido.</p>
<table>
{{range .Items}}<tr><td>{{.Quantity}}x {{.Name}}</td><td>{{.UnitPrice}}</td><td>{{.Total}}</td></tr>
{{end}}</table>
<p>Subtotal: {{.Subtotal}}<br>Frete: {{.Shipping}}<br>{{if .Discount}}Desconto: -{{.Discount}}<br>{{end}}<strong>Total: {{.Total}}</strong></p>
<p>Entrega:<br>{{range .Address}}{{.}}<br>{{end}}</p>
<p>Pagamento: {{.Method}}</p>
{{if .PaymentFailed}}<p>Não conseguimos concluir o pagamento. Você pode tentar novamente pela página do pedido.</p>
{{else if .PixQRCode}}<p><img src="{{.PixQRCodeURL}}" alt="QR Code Pix"></p><p><code>{{.PixQRCode}}</code></p><p>Válido até {{.PixExpiresAt}}.</p>
{{else if .BoletoBarcode}}<p><code>{{.BoletoBarcode}}</code></p><p><a href="{{.BoletoURL}}">Abrir boleto</a>, vencimento {{.BoletoDueAt}}.</p>
{{else if .CardLastFour}}<p>Cartão final {{.CardLastFour}}, status {{.PaymentStatus}}.</p>
{{end}}</body></html>
`))
