package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = "/org/freedesktop/Notifications"
	notifySignature    = "susssasa{sv}i"
	dismissSignature   = "u"
	notificationIDType = "u"
)

// callNotifications invokes one org.freedesktop.Notifications method on the
// user bus and returns busctl's trimmed output.
func callNotifications(ctx context.Context, method string, signature string, args ...string) (string, error) {
	argv := append([]string{"--user", "call", notificationsDest, notificationsPath, notificationsDest, method, signature}, args...)
	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", fmt.Errorf("busctl %s: %w", method, err)
		}
		return "", fmt.Errorf("busctl %s: %w (%s)", method, err, trimmed)
	}
	return trimmed, nil
}

// desktopNotify shows or replaces a notification and returns the id the
// server assigned to it.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error) {
	out, err := callNotifications(ctx, "Notify", notifySignature,
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"", // icon
		summary,
		"",  // body
		"0", // actions
		"0", // hints
		strconv.Itoa(timeoutMS),
	)
	if err != nil {
		return 0, err
	}

	kind, value, ok := strings.Cut(out, " ")
	if !ok || kind != notificationIDType {
		return 0, fmt.Errorf("busctl Notify: unexpected reply %q", out)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("busctl Notify: parse id %q: %w", value, err)
	}
	return uint32(id), nil
}

func desktopDismiss(ctx context.Context, id uint32) error {
	_, err := callNotifications(ctx, "CloseNotification", dismissSignature, strconv.FormatUint(uint64(id), 10))
	return err
}
