// Package config 负责加载守护进程的 JSON 根配置，并为缺省字段补齐默认值。
// 链定义与代币表使用独立的 YAML 文件，分别由 web3 与 bundle 包解析。
package config
