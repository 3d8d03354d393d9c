// Package api 暴露 BundleHub 编排器的 REST 接口：bundle 查询、投资/赎回
// 预估与执行、操作记录查询，以及 Prometheus 指标。
package api
