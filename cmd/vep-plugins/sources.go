package main

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stekaz/VEP-plugins/internal/annotate"
	"github.com/stekaz/VEP-plugins/internal/datasource/offsetscore"
	"github.com/stekaz/VEP-plugins/internal/datasource/regionannot"
)

// Config keys.
const (
	keyOffsetDir      = "offsetscore.dir"
	keyOffsetLabel    = "offsetscore.label"
	keyOffsetMin      = "offsetscore.min"
	keyOffsetStep     = "offsetscore.step"
	keyOffsetBPP      = "offsetscore.bytes_per_position"
	keyOffsetSentinel = "offsetscore.sentinel"
	keyOffsetOrder    = "offsetscore.base_order"

	keyRegionFile       = "regionannot.file"
	keyRegionComplex    = "regionannot.complex_file"
	keyRegionLabel      = "regionannot.label"
	keyRegionBackend    = "regionannot.backend"
	keyRegionTabix      = "regionannot.tabix"
	keyRegionTypeField  = "regionannot.type_field"
	keyRegionSimpleType = "regionannot.simple_type"
	keyRegionHGVSFields = "regionannot.hgvs_fields"
	keyRegionChrPrefix  = "regionannot.chr_prefix"

	keyWorkers = "annotate.workers"
	keyCacheDB = "annotate.cache_db"
)

func setDefaults() {
	od := offsetscore.DefaultOptions()
	viper.SetDefault(keyOffsetLabel, od.Label)
	viper.SetDefault(keyOffsetMin, od.MinScore)
	viper.SetDefault(keyOffsetStep, od.Step)
	viper.SetDefault(keyOffsetBPP, od.BytesPerPosition)
	viper.SetDefault(keyOffsetSentinel, int(od.Sentinel))
	viper.SetDefault(keyOffsetOrder, od.BaseOrder)

	rd := regionannot.DefaultOptions()
	viper.SetDefault(keyRegionLabel, rd.Label)
	viper.SetDefault(keyRegionBackend, regionannot.BackendTabix)
	viper.SetDefault(keyRegionTabix, "tabix")
	viper.SetDefault(keyRegionTypeField, rd.TypeField)
	viper.SetDefault(keyRegionSimpleType, rd.SimpleType)
	viper.SetDefault(keyRegionHGVSFields, rd.HGVSFields)
	viper.SetDefault(keyRegionChrPrefix, false)

	viper.SetDefault(keyWorkers, 0)
}

// openSources opens every configured store. A store is configured when its
// data location key is set. On error, stores opened so far are closed.
func openSources(logger *zap.Logger) ([]annotate.Source, error) {
	var sources []annotate.Source
	fail := func(err error) ([]annotate.Source, error) {
		for _, s := range sources {
			s.Close()
		}
		return nil, err
	}

	if dir := viper.GetString(keyOffsetDir); dir != "" {
		sentinel := viper.GetInt(keyOffsetSentinel)
		if sentinel < 0 || sentinel > 255 {
			return fail(fmt.Errorf("%s must be a byte value, got %d", keyOffsetSentinel, sentinel))
		}
		opts := offsetscore.Options{
			Label:            viper.GetString(keyOffsetLabel),
			BytesPerPosition: viper.GetInt(keyOffsetBPP),
			MinScore:         viper.GetFloat64(keyOffsetMin),
			Step:             viper.GetFloat64(keyOffsetStep),
			Sentinel:         byte(sentinel),
			BaseOrder:        viper.GetString(keyOffsetOrder),
			Logger:           logger,
		}
		s, err := offsetscore.Open(dir, opts)
		if err != nil {
			return fail(err)
		}
		sources = append(sources, s)
	}

	if file := viper.GetString(keyRegionFile); file != "" {
		q, err := regionannot.NewQuerier(viper.GetString(keyRegionBackend), viper.GetString(keyRegionTabix))
		if err != nil {
			return fail(&annotate.ConfigError{Source: viper.GetString(keyRegionLabel), Message: "region backend", Err: err})
		}
		opts := regionannot.Options{
			Label:      viper.GetString(keyRegionLabel),
			TypeField:  viper.GetString(keyRegionTypeField),
			SimpleType: viper.GetString(keyRegionSimpleType),
			HGVSFields: viper.GetStringSlice(keyRegionHGVSFields),
			ChrPrefix:  viper.GetBool(keyRegionChrPrefix),
			Querier:    q,
			Logger:     logger,
		}
		s, err := regionannot.Open(file, viper.GetString(keyRegionComplex), opts)
		if err != nil {
			q.Close()
			return fail(err)
		}
		sources = append(sources, s)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no annotation sources configured; set %s or %s", keyOffsetDir, keyRegionFile)
	}
	return sources, nil
}
