package cli

import "flag"

func (c *Config) registerFlagsOsSpecific(fs *flag.FlagSet) {
	fs.StringVar(&c.AdapterID, "bt-adapter", "", "ID of the Bluetooth adapter to use. Defaults to $HAP_BLE_ADAPTER or hci0.")
}
