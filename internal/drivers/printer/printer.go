package printer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/nerrad567/till-bridge/internal/device"
	"github.com/nerrad567/till-bridge/internal/drivers/serialio"
	"github.com/nerrad567/till-bridge/internal/infrastructure/config"
)

// ErrNotConnected is returned when a print is requested with no
// reachable printer endpoint.
var ErrNotConnected = errors.New("printer: device not connected")

// Driver renders receipt documents to ESC/POS and transmits them as
// atomic jobs. A print either reaches the printer in full or fails
// without being reported as success.
type Driver struct {
	cfg    config.PrinterConfig
	emit   func(device.Event)
	open   serialio.Opener
	logger device.Logger

	mu   sync.Mutex
	conn io.WriteCloser
}

// New validates the printer family and probes the configured endpoint.
// A probe failure is not fatal: the driver stays registered and retries
// the connection on the next print. An unknown family is a construction
// error and propagates.
func New(cfg config.PrinterConfig, emit func(device.Event), open serialio.Opener, logger device.Logger) (*Driver, error) {
	switch cfg.Family {
	case "epson", "generic":
	default:
		return nil, fmt.Errorf("printer: unknown family %q", cfg.Family)
	}

	d := &Driver{
		cfg:    cfg,
		emit:   emit,
		open:   open,
		logger: logger,
	}

	if cfg.Interface != "" {
		conn, err := dial(cfg.Interface, cfg.Baud, open)
		if err != nil {
			logger.Warn("printer unreachable, will retry on print",
				"interface", cfg.Interface, "error", err)
			emit(device.Event{
				Kind:    device.EventError,
				Source:  device.CapPrinter,
				Message: fmt.Sprintf("printer connection failed: %v", err),
			})
		} else {
			d.conn = conn
			logger.Info("printer connected", "interface", cfg.Interface, "columns", cfg.Columns)
		}
	}

	return d, nil
}

// Capability implements device.Driver.
func (d *Driver) Capability() device.Capability { return device.CapPrinter }

// Close releases the printer connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// PrintReceipt renders and transmits a sale receipt. No automatic cut;
// receipts are torn by hand.
func (d *Driver) PrintReceipt(doc Receipt) error {
	j := newJob(d.cfg.Columns)
	d.renderReceipt(j, doc)
	return d.submit(j)
}

// PrintCashClose renders and transmits the end-of-shift report, cutting
// the paper afterwards.
func (d *Driver) PrintCashClose(report CashClose) error {
	j := newJob(d.cfg.Columns)
	d.renderCashClose(j, report)
	j.cut()
	return d.submit(j)
}

// submit writes a finished job in one call. A transmission failure
// drops the connection so the next print re-dials.
func (d *Driver) submit(j *job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureConnected(); err != nil {
		return err
	}
	if _, err := d.conn.Write(j.bytes()); err != nil {
		d.logger.Error("print job failed", "error", err)
		_ = d.conn.Close()
		d.conn = nil
		return fmt.Errorf("printer: write: %w", err)
	}
	return nil
}

// ensureConnected re-dials a dropped or never-established connection.
// Caller holds d.mu.
func (d *Driver) ensureConnected() error {
	if d.conn != nil {
		return nil
	}
	if d.cfg.Interface == "" {
		return ErrNotConnected
	}

	conn, err := dial(d.cfg.Interface, d.cfg.Baud, d.open)
	if err != nil {
		return fmt.Errorf("printer: connect %s: %w", d.cfg.Interface, err)
	}
	d.conn = conn
	d.logger.Info("printer reconnected", "interface", d.cfg.Interface)
	return nil
}

func (d *Driver) renderReceipt(j *job, doc Receipt) {
	money := func(v float64) string { return formatMoney(d.cfg.CurrencyPrefix, v) }

	j.align(alignCenter)
	j.bold(true)
	j.text(doc.ShopName)
	j.bold(false)
	for _, line := range doc.AddressLines {
		j.text(line)
	}
	if doc.Contact != "" {
		j.text(doc.Contact)
	}
	j.rule()

	j.align(alignLeft)
	j.text("Venda: " + doc.SaleNumber)
	j.text("Data: " + doc.Date)
	j.text("Operador: " + doc.Operator)
	j.rule()

	j.bold(true)
	j.text("ITENS")
	j.bold(false)
	for _, item := range doc.Items {
		j.text(item.Name)
		j.textPair(
			fmt.Sprintf("  %s x %s", formatQuantity(item.Quantity), money(item.UnitPrice)),
			money(item.Total),
		)
	}
	j.rule()

	if doc.Discount > 0 {
		j.textPair("Subtotal", money(doc.Subtotal))
		j.textPair("Desconto", "-"+money(doc.Discount))
	}
	j.bold(true)
	j.textPair("TOTAL", money(doc.Total))
	j.bold(false)

	j.text("Pagamento: " + doc.PaymentMethod)
	if doc.ChangeDue != nil {
		j.textPair("Troco", money(*doc.ChangeDue))
	}
	if doc.Installments > 1 {
		each := math.Round(doc.Total/float64(doc.Installments)*100) / 100
		j.textPair("Parcelamento", fmt.Sprintf("%dx %s", doc.Installments, money(each)))
	}
	j.rule()

	j.align(alignCenter)
	j.text("SEM VALOR FISCAL")
	j.text("Obrigado, volte sempre!")
	j.feed(3)
}

func (d *Driver) renderCashClose(j *job, report CashClose) {
	money := func(v float64) string { return formatMoney(d.cfg.CurrencyPrefix, v) }

	j.align(alignCenter)
	j.bold(true)
	j.text(report.ShopName)
	j.text("FECHAMENTO DE CAIXA")
	j.bold(false)
	j.rule()

	j.align(alignLeft)
	j.text("Operador: " + report.Operator)
	j.text("Abertura: " + report.OpenedAt)
	j.text("Fechamento: " + report.ClosedAt)
	j.rule()

	j.textPair("Saldo inicial", money(report.OpeningBalance))
	j.textPair("Vendas em dinheiro", money(report.CashSales))
	j.textPair("Suprimentos", money(report.Supplements))
	j.textPair("Sangrias", money(-report.Withdrawals))
	j.rule()

	j.bold(true)
	j.textPair("Esperado", money(report.Expected))
	j.textPair("Contado", money(report.Counted))
	j.bold(false)
	j.textPair("Diferenca", money(report.Discrepancy()))
}
