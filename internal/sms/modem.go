package sms

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/pkg/logger"
)

// Settle times between writing a command and reading the modem's
// response. Vars so tests can shorten them.
var (
	commandSettle = time.Second
	submitSettle  = 3 * time.Second
)

// PortDialer opens the modem's serial device. The opened port must
// apply its own read deadlines; the AT driver does blocking reads.
// Injected so the driver can be tested without hardware.
type PortDialer func(device string, baud int) (io.ReadWriteCloser, error)

// OpenSerialPort opens the device node directly. Line speed and framing
// are expected to be preconfigured on the tty (stty -F <dev> <baud>);
// the driver only exchanges AT commands over it.
func OpenSerialPort(device string, _ int) (io.ReadWriteCloser, error) {
	return os.OpenFile(device, os.O_RDWR, 0)
}

// ModemChannel drives a GSM modem over AT commands. A failed
// initialization degrades the channel to permanently disconnected; it
// never fails construction.
type ModemChannel struct {
	mu        sync.Mutex
	cfg       config.ChannelConfig
	port      io.ReadWriteCloser
	connected bool
	logger    *logger.Logger
}

func NewModem(cfg config.ChannelConfig, dial PortDialer, log *logger.Logger) *ModemChannel {
	m := &ModemChannel{cfg: cfg, logger: log}

	port, err := dial(cfg.Device, cfg.Baud)
	if err != nil {
		log.Error(err, "failed to open modem device", "device", cfg.Device)
		return m
	}
	m.port = port

	if err := m.initModem(); err != nil {
		log.Error(err, "modem initialization failed", "device", cfg.Device)
		port.Close()
		m.port = nil
		return m
	}

	m.connected = true
	log.Info("modem connected", "device", cfg.Device)
	return m
}

func (m *ModemChannel) initModem() error {
	if _, err := m.command("AT"); err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}
	if m.cfg.PIN != "" {
		if _, err := m.command("AT+CPIN=" + m.cfg.PIN); err != nil {
			return fmt.Errorf("SIM PIN rejected: %w", err)
		}
	}
	// Text mode
	if _, err := m.command("AT+CMGF=1"); err != nil {
		return fmt.Errorf("failed to set text mode: %w", err)
	}
	return nil
}

func (m *ModemChannel) Name() string { return "gsm_modem" }

func (m *ModemChannel) Send(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("modem not connected")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := m.port.Write([]byte(fmt.Sprintf("AT+CMGS=%q\r\n", to))); err != nil {
		return fmt.Errorf("failed to address message: %w", err)
	}
	// Ctrl+Z terminates and submits the message body.
	if _, err := m.port.Write([]byte(body + "\x1a")); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	time.Sleep(submitSettle)

	resp, err := m.read()
	if err != nil {
		return fmt.Errorf("failed to read modem response: %w", err)
	}
	if !strings.Contains(resp, "OK") {
		return fmt.Errorf("modem rejected message: %s", strings.TrimSpace(resp))
	}
	return nil
}

func (m *ModemChannel) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return StatusDisconnected
	}
	if _, err := m.commandLocked("AT+CSQ"); err != nil {
		return StatusError
	}
	return StatusConnected
}

// Close releases the serial port.
func (m *ModemChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	return err
}

func (m *ModemChannel) command(cmd string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commandLocked(cmd)
}

func (m *ModemChannel) commandLocked(cmd string) (string, error) {
	if m.port == nil {
		return "", fmt.Errorf("port closed")
	}
	if _, err := m.port.Write([]byte(cmd + "\r\n")); err != nil {
		return "", err
	}
	time.Sleep(commandSettle)
	resp, err := m.read()
	if err != nil {
		return "", err
	}
	if !strings.Contains(resp, "OK") {
		return resp, fmt.Errorf("modem returned %s", strings.TrimSpace(resp))
	}
	return resp, nil
}

func (m *ModemChannel) read() (string, error) {
	buf := make([]byte, 512)
	n, err := m.port.Read(buf)
	if err != nil && n == 0 {
		return "", err
	}
	return string(buf[:n]), nil
}
