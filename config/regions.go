package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"brickdesk/server/internal/models"
)

var (
	regionConfig *models.RegionConfig
	regionLock   sync.RWMutex
	regionPath   = "config/regions.json"
)

// SetRegionPath overrides the region config file location before loading.
func SetRegionPath(path string) {
	regionLock.Lock()
	defer regionLock.Unlock()
	if path != "" {
		regionPath = path
	}
}

// LoadRegionConfig loads the region configuration from file. A missing file
// is not an error; the server just starts with no regions defined.
func LoadRegionConfig() error {
	regionLock.Lock()
	defer regionLock.Unlock()

	absPath, err := filepath.Abs(regionPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %v", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			regionConfig = &models.RegionConfig{}
			return nil
		}
		return fmt.Errorf("failed to read region config: %v", err)
	}

	var cfg models.RegionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse region config: %v", err)
	}

	regionConfig = &cfg
	return nil
}

// SaveRegionConfig writes the current configuration back to file.
func SaveRegionConfig() error {
	regionLock.Lock()
	defer regionLock.Unlock()
	return saveRegionConfigLocked()
}

func saveRegionConfigLocked() error {
	if regionConfig == nil {
		return fmt.Errorf("no region configuration loaded")
	}

	absPath, err := filepath.Abs(regionPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %v", err)
	}

	data, err := json.MarshalIndent(regionConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal region config: %v", err)
	}

	if err := os.WriteFile(absPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write region config: %v", err)
	}

	return nil
}

// GetRegions returns all configured regions.
func GetRegions() []models.Region {
	regionLock.RLock()
	defer regionLock.RUnlock()

	if regionConfig == nil {
		return nil
	}

	regions := make([]models.Region, len(regionConfig.Regions))
	copy(regions, regionConfig.Regions)
	return regions
}

// GetRegionByName returns a specific region, or nil if not configured.
func GetRegionByName(name string) *models.Region {
	regionLock.RLock()
	defer regionLock.RUnlock()

	if regionConfig == nil {
		return nil
	}

	for _, region := range regionConfig.Regions {
		if region.Name == name {
			out := models.Region{Name: region.Name, Cities: append([]string{}, region.Cities...)}
			return &out
		}
	}
	return nil
}

// GetCitiesInRegion returns the city list for a region, nil when unknown.
func GetCitiesInRegion(name string) []string {
	region := GetRegionByName(name)
	if region == nil {
		return nil
	}
	return region.Cities
}

// UpdateRegion updates or adds a region and persists the configuration.
func UpdateRegion(region models.Region) error {
	regionLock.Lock()
	defer regionLock.Unlock()

	if regionConfig == nil {
		regionConfig = &models.RegionConfig{}
	}

	found := false
	for i, existing := range regionConfig.Regions {
		if existing.Name == region.Name {
			regionConfig.Regions[i] = region
			found = true
			break
		}
	}
	if !found {
		regionConfig.Regions = append(regionConfig.Regions, region)
	}

	return saveRegionConfigLocked()
}

// DeleteRegion removes a region and persists the configuration.
func DeleteRegion(name string) error {
	regionLock.Lock()
	defer regionLock.Unlock()

	if regionConfig == nil {
		return fmt.Errorf("no region configuration loaded")
	}

	for i, region := range regionConfig.Regions {
		if region.Name == name {
			regionConfig.Regions = append(regionConfig.Regions[:i], regionConfig.Regions[i+1:]...)
			return saveRegionConfigLocked()
		}
	}

	return fmt.Errorf("region not found: %s", name)
}
