package chain

import "strings"

// rollupProcessorABIJSON is the subset of the on-chain rollup processor's
// ABI this adapter depends on, per spec §6 ("External interfaces").
const rollupProcessorABIJSON = `[
	{"constant":true,"inputs":[],"name":"getSupportedAssets","outputs":[{"name":"","type":"address[]"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"nextRollupId","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"dataSize","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"dataRoot","outputs":[{"name":"","type":"bytes32"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"nullRoot","outputs":[{"name":"","type":"bytes32"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"rootRoot","outputs":[{"name":"","type":"bytes32"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"getEscapeHatchStatus","outputs":[{"name":"","type":"bool"},{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[
		{"name":"proofData","type":"bytes"},
		{"name":"signatures","type":"bytes"},
		{"name":"sigIndexes","type":"uint256[]"},
		{"name":"viewingKeys","type":"bytes"}
	],"name":"processRollup","outputs":[],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"rollupId","type":"uint256"}],"name":"RollupProcessed","type":"event"}
]`

// erc20ABIJSON is the subset of the ERC-20 interface this adapter depends
// on, per spec §6 ("Supported-asset ERC-20s").
const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

func abiReader(raw string) *strings.Reader {
	return strings.NewReader(raw)
}
