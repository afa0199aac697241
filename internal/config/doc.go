// Package config loads scaffoldhost's configuration.
//
// Configuration is layered, with higher layers overriding lower ones:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← Highest priority
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← SCAFFOLDHOST_SECTION_KEY
//	├─────────────────────────────┤
//	│  2. Config File             │  ← .toml, .yaml or .yml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Each layer is read into a map, the maps are deep-merged, and the result
// is decoded onto Default(). Keys a layer leaves out keep the value from
// the layer below.
//
// A Watcher reports changes to the config file so long-running hosts can
// pick up a new log level without restarting.
package config
