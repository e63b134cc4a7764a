package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blecentral/central"
	"github.com/srg/blecentral/internal/device"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for BLE peripherals",
		Long: `Scan for Bluetooth Low Energy peripherals and print one line per discovery:

  [device(conn), rssi: -40, Widget, id: aa:bb:cc:dd:ee:ff]

Without --scan-once or --connect the command returns after the first discovery.
With --scan-once the scan is stopped after the first discovery.
With --connect the scan is stopped and the first connectable peripheral is
connected; an interactive GATT prompt is started on the connection.`,
		Args: cobra.NoArgs,
		RunE: runScan,
	}
	addScanFlags(cmd)
	return cmd
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("scan-once", false, "Stop scanning after the first discovered peripheral")
	cmd.Flags().Bool("connect", false, "Connect to the first connectable peripheral")
	cmd.Flags().String("name", "", "Only report peripherals whose name contains this text")
	cmd.Flags().StringSlice("service", nil, "Only report peripherals advertising one of these service UUIDs")
	cmd.Flags().Bool("allow-duplicates", false, "Report repeated advertisements from the same peripheral")
	cmd.Flags().Duration("scan-timeout", 0, "Stop scanning after this long (0 scans until stopped)")
}

// scanFilter builds the filter from --name and --service.
func scanFilter(cmd *cobra.Command) (*central.ScanFilter, error) {
	name, _ := cmd.Flags().GetString("name")
	services, _ := cmd.Flags().GetStringSlice("service")

	filter := &central.ScanFilter{NameSubstring: name}
	if len(services) > 0 {
		normalized, err := device.ValidateUUID(services...)
		if err != nil {
			return nil, fmt.Errorf("invalid service UUID: %w", err)
		}
		filter.ServiceUUIDs = normalized
	}
	return filter, nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	filter, err := scanFilter(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := interruptible(cmd)
	defer cancel()

	s.logger.WithFields(logrus.Fields{
		"scan_once": s.cfg.ScanOnce,
		"connect":   s.cfg.Connect,
	}).Debug("Starting scan session")

	if err := s.svc.StartScan(ctx, filter); err != nil {
		return fmt.Errorf("failed to start scan: %w", err)
	}

	return s.finish(s.listener(cmd).Listen(ctx, s.state()))
}
