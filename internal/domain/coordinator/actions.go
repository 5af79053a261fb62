package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/PhishGuard/internal/shared/urls"
)

// Proceed records the user's choice to continue to url from the warning
// page and returns the host now trusted for the session.
func (c *Coordinator) Proceed(url string) (string, error) {
	return c.allow.GrantProceed(url)
}

// AddToWhitelist persists the host of url in the user whitelist.
func (c *Coordinator) AddToWhitelist(ctx context.Context, url string) (string, error) {
	host, err := urls.Hostname(url)
	if err != nil {
		return "", err
	}
	added, err := c.settings.AddWhitelistHost(ctx, host)
	if err != nil {
		return "", fmt.Errorf("failed to whitelist %s: %w", host, err)
	}
	if added {
		c.logger.Info("Host whitelisted", zap.String("host", host))
	}
	return host, nil
}

// RemoveFromWhitelist removes host from the user whitelist.
func (c *Coordinator) RemoveFromWhitelist(ctx context.Context, host string) (bool, error) {
	removed, err := c.settings.RemoveWhitelistHost(ctx, host)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", host, err)
	}
	if removed {
		c.logger.Info("Host removed from whitelist", zap.String("host", host))
	}
	return removed, nil
}

// Whitelist returns the user whitelist.
func (c *Coordinator) Whitelist() []string {
	return c.allow.UserHosts()
}

// SetEnabled persists the protection toggle.
func (c *Coordinator) SetEnabled(ctx context.Context, enabled bool) error {
	if err := c.settings.SetEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("failed to update protection state: %w", err)
	}
	c.logger.Info("Protection toggled", zap.Bool("enabled", enabled))
	return nil
}

// Enabled reports whether protection is on.
func (c *Coordinator) Enabled() bool {
	return c.settings.Snapshot().Enabled
}
