package telemetry

import (
	"fmt"

	"github.com/jaypipes/ghw"
	"github.com/rs/zerolog"
)

// DeviceConfig identifies one DRM card to sample.
type DeviceConfig struct {
	// Sysfs card id under /sys/class/drm, e.g. "card1".
	Card string
	// Display name, e.g. "RX 470".
	Name string
	// Vulkan device index the worker sees for this card.
	VulkanID int
}

// Discover enumerates GPUs over PCI when no explicit card list is configured.
// Card ids follow DRM numbering (card0, card1, ...) in enumeration order; the
// Vulkan index is assumed to match. Returns nil when enumeration fails, which
// leaves telemetry disabled rather than failing startup.
func Discover(log zerolog.Logger) []DeviceConfig {
	info, err := ghw.GPU()
	if err != nil {
		log.Warn().Err(err).Msg("gpu discovery failed")
		return nil
	}
	var out []DeviceConfig
	for i, card := range info.GraphicsCards {
		name := "GPU"
		if card.DeviceInfo != nil && card.DeviceInfo.Product != nil && card.DeviceInfo.Product.Name != "" {
			name = card.DeviceInfo.Product.Name
		}
		out = append(out, DeviceConfig{
			Card:     fmt.Sprintf("card%d", card.Index),
			Name:     name,
			VulkanID: i,
		})
		log.Info().Str("card", fmt.Sprintf("card%d", card.Index)).Str("name", name).Msg("discovered gpu")
	}
	return out
}
