// Package invest 实现投资编排器：份额估算、授权管理、铸造/赎回策略选择、
// 换币组篮，以及把整条调用序列交给签名代理的批量提交计划器。
// 编排器在一次用户操作的生命周期之外不持有任何状态。
package invest
