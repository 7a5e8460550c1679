package mining

import (
	"fmt"
	"math"
	"sort"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

// Similarity weights. Task type dominates; the remaining dimensions
// refine within a type.
const (
	weightTaskType  = 0.4
	weightEnergy    = 0.2
	weightTimeOfDay = 0.2
	weightDevice    = 0.1
	weightDayOfWeek = 0.1
)

// TaskSimilarity scores two task feature sets in [0, 1]
func TaskSimilarity(a, b types.TaskFeatures) float64 {
	score := 0.0
	total := 0.0

	total += weightTaskType
	if a.TaskType == b.TaskType {
		score += weightTaskType
	}

	if a.EnergyLevel > 0 && b.EnergyLevel > 0 {
		total += weightEnergy
		diff := math.Abs(float64(a.EnergyLevel - b.EnergyLevel))
		score += weightEnergy * (1 - diff/4)
	}

	if a.TimeOfDay != "" && b.TimeOfDay != "" {
		total += weightTimeOfDay
		if a.TimeOfDay == b.TimeOfDay {
			score += weightTimeOfDay
		}
	}

	if a.DeviceType != "" && b.DeviceType != "" {
		total += weightDevice
		if a.DeviceType == b.DeviceType {
			score += weightDevice
		}
	}

	total += weightDayOfWeek
	dayDiff := math.Abs(float64(a.DayOfWeek - b.DayOfWeek))
	if dayDiff > 6 {
		dayDiff = 6
	}
	score += weightDayOfWeek * (1 - dayDiff/6)

	if total == 0 {
		return 0
	}
	return score / total
}

// ClusterTasks groups tasks into behavioral clusters. Tasks bucket by
// (type, time of day) first, then cluster within each bucket by the
// pairwise similarity threshold; clusters above the threshold merge
// across buckets; clusters with fewer than two members are dropped.
func (m *Miner) ClusterTasks(tasks []types.TaskFeatures) []*types.TaskCluster {
	if len(tasks) == 0 {
		m.clusters = nil
		return nil
	}

	buckets := make(map[string][]types.TaskFeatures)
	var order []string
	for _, t := range tasks {
		key := t.TaskType + "|" + t.TimeOfDay
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], t)
	}

	// Within a bucket a task joins the first cluster it clears the
	// threshold against, otherwise it seeds its own. Sharing a bucket
	// alone is not enough to land in the same cluster.
	var clusters []*types.TaskCluster
	for _, key := range order {
		var local []*types.TaskCluster
		for _, t := range buckets[key] {
			placed := false
			for _, c := range local {
				if TaskSimilarity(t, c.Centroid) > m.cfg.SimilarityThreshold {
					c.Tasks = append(c.Tasks, t)
					c.Centroid = centroid(c.Tasks)
					placed = true
					break
				}
			}
			if !placed {
				local = append(local, &types.TaskCluster{
					ID:       fmt.Sprintf("cluster-%s-%d", key, len(local)+1),
					Tasks:    []types.TaskFeatures{t},
					Centroid: centroid([]types.TaskFeatures{t}),
				})
			}
		}
		clusters = append(clusters, local...)
	}

	// Greedy pairwise merge over centroids. Each merge recomputes the
	// centroid, so a chain of near matches collapses into one cluster.
	merged := true
	for merged {
		merged = false
		for i := 0; i < len(clusters) && !merged; i++ {
			for j := i + 1; j < len(clusters); j++ {
				if TaskSimilarity(clusters[i].Centroid, clusters[j].Centroid) > m.cfg.SimilarityThreshold {
					clusters[i].Tasks = append(clusters[i].Tasks, clusters[j].Tasks...)
					clusters[i].Centroid = centroid(clusters[i].Tasks)
					clusters = append(clusters[:j], clusters[j+1:]...)
					merged = true
					break
				}
			}
		}
	}

	out := clusters[:0]
	for _, c := range clusters {
		if len(c.Tasks) < 2 {
			continue
		}
		c.Characteristics = characteristics(c.Tasks)
		out = append(out, c)
	}

	m.clusters = out
	m.logger.Info("Task clustering completed", "tasks", len(tasks), "clusters", len(out))
	return out
}

// Clusters returns the clusters from the last ClusterTasks call
func (m *Miner) Clusters() []*types.TaskCluster {
	return m.clusters
}

// centroid builds the representative feature set for a member list:
// mode for categorical fields, rounded mean for numeric ones.
func centroid(tasks []types.TaskFeatures) types.TaskFeatures {
	if len(tasks) == 0 {
		return types.TaskFeatures{}
	}

	energySum, daySum := 0, 0
	durationSum := 0.0
	typeCounts := make(map[string]int)
	todCounts := make(map[string]int)
	deviceCounts := make(map[string]int)
	for _, t := range tasks {
		energySum += t.EnergyLevel
		daySum += t.DayOfWeek
		durationSum += t.DurationMinutes
		typeCounts[t.TaskType]++
		todCounts[t.TimeOfDay]++
		deviceCounts[t.DeviceType]++
	}

	n := float64(len(tasks))
	return types.TaskFeatures{
		TaskType:        mode(typeCounts),
		EnergyLevel:     int(math.Round(float64(energySum) / n)),
		TimeOfDay:       mode(todCounts),
		DeviceType:      mode(deviceCounts),
		DayOfWeek:       int(math.Round(float64(daySum) / n)),
		DurationMinutes: durationSum / n,
	}
}

func mode(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := ""
	bestCount := 0
	for _, k := range keys {
		if counts[k] > bestCount {
			best = k
			bestCount = counts[k]
		}
	}
	return best
}

// characteristics summarizes a cluster's member list
func characteristics(tasks []types.TaskFeatures) types.ClusterCharacteristics {
	completed := 0
	durationSum := 0.0
	durationCount := 0
	energyDist := make(map[int]int)
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
		if t.DurationMinutes > 0 {
			durationSum += t.DurationMinutes
			durationCount++
		}
		if t.EnergyLevel > 0 {
			energyDist[t.EnergyLevel]++
		}
	}

	c := types.ClusterCharacteristics{
		CompletionRate:     float64(completed) / float64(len(tasks)),
		EnergyDistribution: energyDist,
	}
	if durationCount > 0 {
		c.AvgDurationMinutes = durationSum / float64(durationCount)
	}
	return c
}
