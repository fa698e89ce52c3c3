package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Export the channel counters to Prometheus.
 *
 * Description:	The interrupt only bumps atomics.  The daemon polls
 *		each channel's StatsRequest once a second and feeds
 *		the snapshot here, which turns counter growth into
 *		Add() calls and copies the states into gauges.
 *
 *----------------------------------------------------------------*/

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	rxBits     *prometheus.CounterVec
	txBits     *prometheus.CounterVec
	dcdChanges *prometheus.CounterVec // label edge=on|off
	underruns  *prometheus.CounterVec
	overruns   *prometheus.CounterVec
	interrupts *prometheus.CounterVec
	xruns      *prometheus.CounterVec
	fragments  *prometheus.CounterVec // label dir=mod|demod
	ptt        *prometheus.GaugeVec
	dcd        *prometheus.GaugeVec
	info       *prometheus.GaugeVec // label mode

	mu   sync.Mutex
	last map[string]ChannelStats
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	var f = promauto.With(reg)
	return &Metrics{
		rxBits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundmodem_rx_bits_total",
			Help: "Channel bits recovered by the demodulator",
		}, []string{"channel"}),
		txBits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundmodem_tx_bits_total",
			Help: "Channel bits taken by the modulator",
		}, []string{"channel"}),
		dcdChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundmodem_dcd_transitions_total",
			Help: "Carrier detect changes",
		}, []string{"channel", "edge"}),
		underruns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundmodem_underruns_total",
			Help: "Output fragments played before they were refilled",
		}, []string{"channel"}),
		overruns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundmodem_overruns_total",
			Help: "Input fragments overwritten before they were demodulated",
		}, []string{"channel"}),
		interrupts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundmodem_interrupts_total",
			Help: "Fragment interrupts serviced",
		}, []string{"channel"}),
		xruns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundmodem_device_xruns_total",
			Help: "Overflows and underflows reported by the sound device",
		}, []string{"channel"}),
		fragments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundmodem_fragments_total",
			Help: "Fragments modulated or demodulated",
		}, []string{"channel", "dir"}),
		ptt: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soundmodem_ptt",
			Help: "Transmitter keyed",
		}, []string{"channel"}),
		dcd: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soundmodem_dcd",
			Help: "Carrier detected",
		}, []string{"channel"}),
		info: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soundmodem_channel_info",
			Help: "Configured mode of each channel, always 1",
		}, []string{"channel", "mode"}),
		last: make(map[string]ChannelStats),
	}
}

// Growth since the last snapshot.  A counter that went backwards was reset by a reopen.
func delta(now uint64, before uint64) float64 {
	if now < before {
		return float64(now)
	}
	return float64(now - before)
}

func (m *Metrics) Update(channel string, s ChannelStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var p = m.last[channel]
	if p.Mode != s.Mode && p.Mode != "" {
		m.info.DeleteLabelValues(channel, p.Mode)
	}
	m.last[channel] = s

	m.rxBits.WithLabelValues(channel).Add(delta(s.RxBits, p.RxBits))
	m.txBits.WithLabelValues(channel).Add(delta(s.TxBits, p.TxBits))
	m.dcdChanges.WithLabelValues(channel, "on").Add(delta(s.DCDOn, p.DCDOn))
	m.dcdChanges.WithLabelValues(channel, "off").Add(delta(s.DCDOff, p.DCDOff))
	m.underruns.WithLabelValues(channel).Add(delta(s.Underruns, p.Underruns))
	m.overruns.WithLabelValues(channel).Add(delta(s.Overruns, p.Overruns))
	m.interrupts.WithLabelValues(channel).Add(delta(s.Interrupts, p.Interrupts))
	m.xruns.WithLabelValues(channel).Add(delta(s.DeviceXRuns, p.DeviceXRuns))
	m.fragments.WithLabelValues(channel, "mod").Add(delta(s.FragmentsModulated, p.FragmentsModulated))
	m.fragments.WithLabelValues(channel, "demod").Add(delta(s.FragmentsDemodulated, p.FragmentsDemodulated))

	m.ptt.WithLabelValues(channel).Set(float64(b2i(s.PTT)))
	m.dcd.WithLabelValues(channel).Set(float64(b2i(s.DCD)))
	if s.Mode != "" {
		m.info.WithLabelValues(channel, s.Mode).Set(1)
	}
}
